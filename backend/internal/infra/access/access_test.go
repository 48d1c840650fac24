package access

import (
	"net/http"
	"testing"

	response "prompt-vault/backend/internal/infra/common"
)

func TestParseID(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{name: "canonical", raw: "3f1c7a52-5b8e-4d0f-9d7a-2b7e1c0f4a11", want: "3f1c7a52-5b8e-4d0f-9d7a-2b7e1c0f4a11", valid: true},
		{name: "uppercase normalised", raw: " 3F1C7A52-5B8E-4D0F-9D7A-2B7E1C0F4A11 ", want: "3f1c7a52-5b8e-4d0f-9d7a-2b7e1c0f4a11", valid: true},
		{name: "empty", raw: ""},
		{name: "garbage", raw: "not-an-id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseID(tc.raw, "提示词 ID")
			if !tc.valid {
				appErr, ok := response.AsAppError(err)
				if !ok || appErr.Code != response.ErrInvalidID || appErr.Status != http.StatusBadRequest {
					t.Fatalf("expected INVALID_ID, got %v", err)
				}
				if appErr.Message != "无效的 提示词 ID" {
					t.Fatalf("unexpected message %q", appErr.Message)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ParseID(%q) = %q, %v", tc.raw, got, err)
			}
		})
	}
}

func TestParseIDsFailsOnFirstInvalid(t *testing.T) {
	if _, err := ParseIDs([]string{"3f1c7a52-5b8e-4d0f-9d7a-2b7e1c0f4a11", "bad"}, "ID"); err == nil {
		t.Fatalf("expected error")
	}
	ids, err := ParseIDs(nil, "ID")
	if err != nil || len(ids) != 0 {
		t.Fatalf("empty input should yield empty ids")
	}
}

func TestEnsureOwnership(t *testing.T) {
	if err := EnsureOwnership("u1", "u1", "提示词"); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	for _, pair := range [][2]string{{"u1", "u2"}, {"", ""}, {"u1", ""}} {
		err := EnsureOwnership(pair[0], pair[1], "提示词")
		appErr, ok := response.AsAppError(err)
		if !ok || appErr.Status != http.StatusForbidden || appErr.Code != response.ErrForbidden {
			t.Fatalf("expected FORBIDDEN for %v, got %v", pair, err)
		}
	}
}
