package device

import (
	"testing"
	"time"
)

func TestDeepCopy_Isolation(t *testing.T) {
	topic := "zigbee2mqtt/living_room/lamp"
	original := &Device{
		ID:     "dev-11111111",
		Name:   "Living Room Lamp",
		Type:   TypeLight,
		Room:   "Living Room",
		Status: StatusOnline,
		Topic:  &topic,
		State: State{
			"power":      true,
			"brightness": 75,
			"color":      "#ffcc00",
		},
		LastSeen:  time.Now().UTC(),
		CreatedAt: time.Now().UTC(),
	}

	cpy := original.DeepCopy()

	cpy.State["power"] = false
	cpy.State["brightness"] = 10
	*cpy.Topic = "changed/topic"

	if original.State["power"] != true {
		t.Error("modifying copy state affected original power")
	}
	if original.State["brightness"] != 75 {
		t.Error("modifying copy state affected original brightness")
	}
	if *original.Topic != topic {
		t.Error("modifying copy topic affected original")
	}
}

func TestDeepCopy_Nil(t *testing.T) {
	var d *Device
	if d.DeepCopy() != nil {
		t.Error("DeepCopy of nil device should be nil")
	}
}

func TestDeepCopy_NestedState(t *testing.T) {
	original := &Device{
		ID:   "dev-22222222",
		Type: TypeCamera,
		State: State{
			"isRecording": true,
			"streamUrl":   "rtsp://cam.local/stream",
		},
	}

	cpy := original.DeepCopy()
	cpy.State["streamUrl"] = "rtsp://other/stream"

	if original.State["streamUrl"] != "rtsp://cam.local/stream" {
		t.Error("modifying copy affected original nested state")
	}
}

func TestAttributesForType(t *testing.T) {
	tests := []struct {
		deviceType DeviceType
		want       []string
		wantAbsent []string
	}{
		{TypeLight, []string{"power", "brightness", "color", "powerUsage", "battery"}, []string{"temperature", "locked"}},
		{TypeThermostat, []string{"power", "temperature", "humidity", "targetTemperature", "mode"}, []string{"brightness", "motion"}},
		{TypeLock, []string{"power", "locked", "pinRequired"}, []string{"color", "contact"}},
		{TypeSensor, []string{"power", "temperature", "humidity", "motion", "contact", "battery"}, []string{"locked", "brightness"}},
		{TypeCamera, []string{"power", "isRecording", "lastEventUrl", "streamUrl"}, []string{"brightness", "motion"}},
		{TypeSwitch, []string{"power", "powerUsage", "battery"}, []string{"brightness", "temperature", "locked"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.deviceType), func(t *testing.T) {
			attrs := AttributesForType(tt.deviceType)
			for _, a := range tt.want {
				if _, ok := attrs[a]; !ok {
					t.Errorf("%s missing attribute %q", tt.deviceType, a)
				}
			}
			for _, a := range tt.wantAbsent {
				if _, ok := attrs[a]; ok {
					t.Errorf("%s should not allow attribute %q", tt.deviceType, a)
				}
			}
		})
	}
}
