package bridge

import (
	"encoding/json"
	"strings"
)

// HAAvailability points Home Assistant at the bridge's availability topic.
type HAAvailability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

type HADeviceSpec struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"ids"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
}

// HAAdvertisement is a Home Assistant MQTT discovery config. Binary sensors
// use the state fields, buttons the command fields.
type HAAdvertisement struct {
	Availability  []HAAvailability `json:"availability"`
	Device        HADeviceSpec     `json:"device"`
	UniqueID      string           `json:"uniq_id"`
	Name          string           `json:"name"`
	Icon          string           `json:"icon,omitempty"`
	StateTopic    string           `json:"state_topic,omitempty"`
	ValueTemplate string           `json:"value_template,omitempty"`
	PayloadOn     string           `json:"payload_on,omitempty"`
	PayloadOff    string           `json:"payload_off,omitempty"`
	DeviceClass   string           `json:"device_class,omitempty"`
	CommandTopic  string           `json:"command_topic,omitempty"`
	PayloadPress  string           `json:"payload_press,omitempty"`
	Qos           int              `json:"qos"`

	component string
	objectID  string
}

// ToJSON renders the advertisement payload.
func (ha HAAdvertisement) ToJSON() []byte {
	data, err := json.Marshal(ha)
	if err != nil {
		return nil
	}
	return data
}

// ConfigTopic is where the advertisement is published.
func (ha HAAdvertisement) ConfigTopic(discoveryPrefix, nodeID string) string {
	return discoveryPrefix + "/" + ha.component + "/" + nodeID + "/" + ha.objectID + "/config"
}

type haButton struct {
	object, name, command, icon string
}

var haButtons = []haButton{
	{"wakeup", "Wake up", "wakeup", "mdi:alarm"},
	{"sleep", "Sleep", "sleep", "mdi:sleep"},
	{"ears_reset", "Reset ears", "ears_reset", "mdi:rabbit"},
	{"random_mood", "Random mood", "moods", "mdi:emoticon-outline"},
	{"capture", "Take snapshot", captureCommand, "mdi:camera"},
}

// advertisements builds the discovery configs for one rabbit: an "asleep"
// binary sensor fed by the retained state topic and one button per
// everyday command.
func (b *Bridge) advertisements(version string) []HAAdvertisement {
	node := b.nodeID()
	device := HADeviceSpec{
		Name:         "Karotz " + b.device.Host(),
		Identifiers:  []string{"karotz_" + node},
		Manufacturer: "Violet",
		Model:        "Karotz (OpenKarotz)",
		SWVersion:    swVersion(version),
	}
	availability := []HAAvailability{{
		Topic:               b.topic(availabilityTopic),
		PayloadAvailable:    payloadOnline,
		PayloadNotAvailable: payloadOffline,
	}}

	ads := []HAAdvertisement{{
		Availability:  availability,
		Device:        device,
		UniqueID:      "karotz_" + node + "_asleep",
		Name:          "Asleep",
		Icon:          "mdi:sleep",
		StateTopic:    b.topic(stateTopic),
		ValueTemplate: "{{ 'ON' if value_json.asleep else 'OFF' }}",
		PayloadOn:     "ON",
		PayloadOff:    "OFF",
		component:     "binary_sensor",
		objectID:      "asleep",
	}}
	for _, btn := range haButtons {
		if btn.command == captureCommand && b.capturer == nil {
			continue
		}
		ads = append(ads, HAAdvertisement{
			Availability: availability,
			Device:       device,
			UniqueID:     "karotz_" + node + "_" + btn.object,
			Name:         btn.name,
			Icon:         btn.icon,
			CommandTopic: b.topic(commandPrefix + btn.command),
			PayloadPress: "{}",
			component:    "button",
			objectID:     btn.object,
		})
	}
	return ads
}

// swVersion drops the placeholder version reported before the first poll.
func swVersion(version string) string {
	v := strings.TrimSpace(version)
	if v == "" || strings.EqualFold(v, "unknown") {
		return ""
	}
	return v
}

// nodeID turns the device address into a discovery-safe identifier.
func (b *Bridge) nodeID() string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, b.device.Host())
}
