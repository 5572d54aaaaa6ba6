package domain

import (
	"testing"

	dErrors "qochi/pkg/domain-errors"
)

// FuzzParseRequestID feeds path segments from /requests/{id} routes. Parsing
// must agree with UnmarshalText, reject the nil UUID and fail only with
// CodeInvalidInput.
func FuzzParseRequestID(f *testing.F) {
	for _, seed := range []string{
		"",
		"3f1c2a9e-8d4b-4c7a-9e1f-2b6d5a8c0e47",
		"{3f1c2a9e-8d4b-4c7a-9e1f-2b6d5a8c0e47}",
		"urn:uuid:3f1c2a9e-8d4b-4c7a-9e1f-2b6d5a8c0e47",
		"00000000-0000-0000-0000-000000000000",
		"..%2f..%2fadmin",
		"\xff\xfe",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParseRequestID(input)
		if err != nil {
			if !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
				t.Fatalf("unexpected error code for %q: %v", input, err)
			}
			return
		}
		if parsed.IsNil() {
			t.Fatalf("nil request id accepted from %q", input)
		}

		var viaText RequestID
		if err := viaText.UnmarshalText([]byte(parsed.String())); err != nil {
			t.Fatalf("canonical form rejected: %v", err)
		}
		if viaText != parsed {
			t.Fatalf("text round-trip changed %s to %s", parsed, viaText)
		}
	})
}
