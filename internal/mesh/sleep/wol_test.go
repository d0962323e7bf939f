package sleep

import "testing"

func TestBuildMagicPacket_ExactLayout(t *testing.T) {
	packet, err := BuildMagicPacket("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(packet) != 102 {
		t.Fatalf("len = %d, want 102", len(packet))
	}
	for i := 0; i < 6; i++ {
		if packet[i] != 0xFF {
			t.Errorf("byte %d = %#x, want 0xFF", i, packet[i])
		}
	}
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	for rep := 0; rep < 16; rep++ {
		for j := 0; j < 6; j++ {
			got := packet[6+rep*6+j]
			if got != want[j] {
				t.Fatalf("repetition %d byte %d = %#x, want %#x", rep, j, got, want[j])
			}
		}
	}
}

func TestBuildMagicPacket_AcceptsDashSeparator(t *testing.T) {
	packet, err := BuildMagicPacket("aa-bb-cc-dd-ee-ff")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(packet) != 102 {
		t.Fatalf("len = %d, want 102", len(packet))
	}
}

func TestParseMAC_RejectsInvalid(t *testing.T) {
	cases := []string{"not-a-mac", "AA:BB:CC:DD:EE", "zz:zz:zz:zz:zz:zz"}
	for _, c := range cases {
		if _, err := ParseMAC(c); err == nil {
			t.Errorf("ParseMAC(%q) expected error", c)
		}
	}
}
