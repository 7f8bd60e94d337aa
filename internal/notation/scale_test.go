package notation

import "testing"

func TestKeyPitchMajorWrapsDegrees(t *testing.T) {
	k := DefaultKey()
	cases := []struct {
		tok  Token
		want int
	}{
		{Token{Degree: 0}, 60},
		{Token{Degree: 2}, 64},
		{Token{Degree: 6}, 71},
		{Token{Degree: 7}, 72},
		{Token{Degree: 9}, 76},
		{Token{Degree: 2, Octave: 1}, 76},
		{Token{Degree: 0, Octave: -1}, 48},
	}
	for _, tc := range cases {
		if got := k.Pitch(tc.tok); got != tc.want {
			t.Fatalf("Pitch(%+v) = %d, want %d", tc.tok, got, tc.want)
		}
	}
}

func TestKeyPitchClamps(t *testing.T) {
	k := Key{Root: 120, Scale: Scale{0, 2, 4, 5, 7, 9, 11}}
	if got := k.Pitch(Token{Degree: 9, Octave: 2}); got != 127 {
		t.Fatalf("expected clamp to 127, got %d", got)
	}
}

func TestParseScale(t *testing.T) {
	sc, err := ParseScale(" Minor_Pentatonic ")
	if err != nil {
		t.Fatalf("parse scale failed: %v", err)
	}
	if len(sc) != 5 {
		t.Fatalf("expected 5 degrees, got %d", len(sc))
	}
	if _, err := ParseScale("nope"); err == nil {
		t.Fatalf("expected error for unknown scale")
	}
}

func TestPitchesFromNotation(t *testing.T) {
	tokens, err := Parse("0.25 0^248")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := DefaultKey().Pitches(tokens)
	want := []int{60, 76, 79, 86}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pitches = %v, want %v", got, want)
		}
	}
}
