package bucket

import "testing"

func TestChecksumDeterministic(t *testing.T) {
	payload := GridCell{Concentrations: []float64{1.5, -2.25, 3}}
	h1 := Checksum(7, payload)
	h2 := Checksum(7, payload)
	if h1 != h2 {
		t.Errorf("Checksum not deterministic: %#x vs %#x", h1, h2)
	}
}

func TestChecksumSensitiveToKeyAndPayload(t *testing.T) {
	base := GridCell{Concentrations: []float64{1, 2, 3}}
	h := Checksum(1, base)

	if h2 := Checksum(2, base); h2 == h {
		t.Error("Checksum should change when key changes")
	}

	changed := GridCell{Concentrations: []float64{1, 2, 3.0000001}}
	if h2 := Checksum(1, changed); h2 == h {
		t.Error("Checksum should change when a concentration changes")
	}
}

func TestChecksumRoundTripThroughWire(t *testing.T) {
	numSpecies := 5
	payload := GridCell{Concentrations: []float64{1, 2, 3, 4, 5}, FluxIn: 0.1, FluxOut: 0.2}
	b := &Bucket{Key: 99, Payload: payload, Status: StatusOccupied}
	b.Checksum = Checksum(b.Key, b.Payload)

	buf := make([]byte, Size(numSpecies))
	Marshal(buf, b, numSpecies)

	var got Bucket
	Unmarshal(buf, &got, numSpecies)

	if Checksum(got.Key, got.Payload) != got.Checksum {
		t.Error("checksum mismatch after marshal/unmarshal round trip")
	}
}
