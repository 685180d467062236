package device

import "testing"

func TestKindFromName(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"Tion_Breezer_S3", KindS3},
		{"Tion_Breezer_4S", KindGeneric},
		{"Tion_Breezer_S4", KindS4},
		{"Tion Lite", KindLite},
		{"tion_breezer", KindGeneric},
		{"", KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindFromName(tt.name); got != tt.want {
				t.Errorf("KindFromName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"Tion_Breezer_living_room": "Living Room",
		"Tion_Breezer_S3":          "S3",
		"kitchen":                  "Kitchen",
		"":                         "",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKind_Model(t *testing.T) {
	if got := KindS3.Model(); got != "S3" {
		t.Errorf("KindS3.Model() = %q, want S3", got)
	}
	if got := KindGeneric.Model(); got != "" {
		t.Errorf("KindGeneric.Model() = %q, want empty", got)
	}
}

func TestCapabilitiesOf(t *testing.T) {
	tests := []struct {
		kind Kind
		want map[Capability]bool
	}{
		{KindS3, map[Capability]bool{
			CapFanControl: true, CapHeaterControl: true, CapTemperatureControl: true,
			CapLightControl: false, CapModeControl: false,
		}},
		{KindS4, map[Capability]bool{
			CapFanControl: true, CapHeaterControl: true, CapTemperatureControl: true,
			CapLightControl: false, CapModeControl: true,
		}},
		{KindLite, map[Capability]bool{
			CapFanControl: true, CapHeaterControl: false, CapTemperatureControl: false,
			CapLightControl: true, CapModeControl: false,
		}},
		{KindGeneric, map[Capability]bool{
			CapFanControl: true, CapHeaterControl: false, CapTemperatureControl: false,
			CapLightControl: false, CapModeControl: false,
		}},
		{"Unknown", map[Capability]bool{
			CapFanControl: true, CapHeaterControl: false, CapTemperatureControl: false,
			CapLightControl: false, CapModeControl: false,
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			caps := CapabilitiesOf(tt.kind)
			if len(caps) != len(AllCapabilities) {
				t.Errorf("CapabilitiesOf(%q) has %d keys, want %d", tt.kind, len(caps), len(AllCapabilities))
			}
			for c, want := range tt.want {
				if caps.Has(c) != want {
					t.Errorf("CapabilitiesOf(%q)[%s] = %v, want %v", tt.kind, c, caps.Has(c), want)
				}
			}
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF", false},
		{" AA-BB-CC-DD-EE-FF ", "AA:BB:CC:DD:EE:FF", false},
		{"aa:bb:cc", "", true},
		{"00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeAddress(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
