package pageio

import "testing"

func Test_HeaderRoundTrip(t *testing.T) {
	h := NewHeader(LittleEndian, 4096, 8, 16, "mylabel", 0x1234, Kind{Unique: true, KeyOnly: false})
	buf, err := Marshal(h, 4096)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, h)
	}
}

func Test_HeaderRoundTrip_BigEndian(t *testing.T) {
	h := NewHeader(BigEndian, 128, 4, 0, "", WildcardSignature, Kind{Unique: false, KeyOnly: true})
	buf, err := Marshal(h, 128)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, h)
	}
}

func Test_UnmarshalRejectsBadMarker(t *testing.T) {
	buf := make([]byte, 128)
	copy(buf, "notabtr")
	_, err := Unmarshal(buf)
	if err == nil {
		t.Fatal("expected error for bad marker")
	}
}

func Test_MarshalRejectsUndersizedPage(t *testing.T) {
	h := NewHeader(LittleEndian, 64, 8, 8, "", 0, Kind{})
	if _, err := Marshal(h, 64); err == nil {
		t.Fatal("expected error for undersized page")
	}
}

func Test_ValidateSignatureWildcard(t *testing.T) {
	h := NewHeader(LittleEndian, 4096, 8, 8, "", 0x42, Kind{Unique: true})
	if err := Validate(h, WildcardSignature, Kind{Unique: true}, 8, 8, false, false); err != nil {
		t.Fatalf("expected wildcard to skip signature check, got %v", err)
	}
	if err := Validate(h, 0x42, Kind{Unique: true}, 8, 8, false, false); err != nil {
		t.Fatalf("expected matching signature to pass, got %v", err)
	}
	if err := Validate(h, 0x99, Kind{Unique: true}, 8, 8, false, false); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}
}

func Test_ValidateDetectsEachFieldMismatch(t *testing.T) {
	h := NewHeader(LittleEndian, 4096, 8, 4, "", 0, Kind{Unique: true, KeyOnly: false})

	if err := Validate(h, 0, Kind{Unique: false, KeyOnly: false}, 8, 4, false, false); err == nil {
		t.Fatal("expected kind mismatch")
	}
	if err := Validate(h, 0, Kind{Unique: true, KeyOnly: false}, 4, 4, false, false); err == nil {
		t.Fatal("expected key size mismatch")
	}
	if err := Validate(h, 0, Kind{Unique: true, KeyOnly: false}, 8, 99, false, false); err == nil {
		t.Fatal("expected mapped size mismatch")
	}
}

func Test_ValidateVariesFlagsSuppressSizeChecks(t *testing.T) {
	h := NewHeader(LittleEndian, 4096, 8, 4, "", 0, Kind{Unique: true})

	if err := Validate(h, 0, Kind{Unique: true}, 16, 4, true, false); err != nil {
		t.Fatalf("key_varies should skip the key size check, got %v", err)
	}
	if err := Validate(h, 0, Kind{Unique: true}, 8, 99, false, true); err != nil {
		t.Fatalf("mapped_varies should skip the mapped size check, got %v", err)
	}
}
