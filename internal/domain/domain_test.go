package domain_test

import (
	"testing"

	"github.com/publicsuffix/psldns/internal/domain"
)

func TestParseBasics(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"com", "com", false},
		{"Example.COM", "example.com", false},
		{"foo.bar.com.", "foo.bar.com", false},
		{"xn--55qx5d.cn", "公司.cn", false},
		{"公司.cn", "公司.cn", false},
		{"foo..com", "", true},
	}

	for _, tc := range tests {
		got, err := domain.Parse(tc.input)
		gotErr := err != nil
		if gotErr != tc.wantErr {
			t.Errorf("domain.Parse(%q) gotErr=%v, want %v (err: %v)", tc.input, gotErr, tc.wantErr, err)
			continue
		}
		if err == nil && got.String() != tc.want {
			t.Errorf("domain.Parse(%q) = %q, want %q", tc.input, got.String(), tc.want)
		}
	}
}

func TestLabelCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"com", "com", 0},
		{"com", "org", -1},
		{"com", "aaa", +1},
		// Equivalent strings in NFC and NFD, ParseLabel should
		// canonicalize to equal.
		{"Québécois", "Que\u0301be\u0301cois", 0},
		// From the xn--o3cw4h block of the PSL.
		{"ทหาร", "ธุรกิจ", -1},
		{"ทหาร", "com", +1},
	}

	for _, tc := range tests {
		la, err := domain.ParseLabel(tc.a)
		if err != nil {
			t.Fatalf("ParseLabel(%q) failed: %v", tc.a, err)
		}
		lb, err := domain.ParseLabel(tc.b)
		if err != nil {
			t.Fatalf("ParseLabel(%q) failed: %v", tc.b, err)
		}

		gotCmp := domain.Label.Compare(la, lb)
		if gotCmp != tc.want {
			t.Errorf("Label.Compare(%q, %q) = %d, want %d", la, lb, gotCmp, tc.want)
		}
		wantEq := tc.want == 0
		if gotEq := domain.Label.Equal(la, lb); gotEq != wantEq {
			t.Errorf("Label.Equal(%q, %q) = %v, want %v", la, lb, gotEq, wantEq)
		}

		// Same again, but backwards.
		gotCmp = domain.Label.Compare(lb, la)
		if want := -tc.want; gotCmp != want {
			t.Errorf("Label.Compare(%q, %q) = %d, want %d", lb, la, gotCmp, want)
		}
		if gotEq := domain.Label.Equal(lb, la); gotEq != wantEq {
			t.Errorf("Label.Equal(%q, %q) = %v, want %v", lb, la, gotEq, wantEq)
		}
	}
}

func TestNameCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"foo.com", "foo.com.", 0},
		{"com", "org", -1},
		{"com", "aaa", +1},
		// Equivalent strings in NFC and NFD, Parse should
		// canonicalize to equal.
		{"Québécois", "Que\u0301be\u0301cois", 0},
		// From the xn--o3cw4h block of the PSL.
		{"ทหาร", "ธุรกิจ", -1},
		{"ทหาร", "com", +1},
	}

	for _, tc := range tests {
		da, err := domain.Parse(tc.a)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tc.a, err)
		}
		db, err := domain.Parse(tc.b)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tc.b, err)
		}

		gotCmp := domain.Name.Compare(da, db)
		if gotCmp != tc.want {
			t.Errorf("Name.Compare(%q, %q) = %d, want %d", da, db, gotCmp, tc.want)
		}
		wantEq := tc.want == 0
		if gotEq := domain.Name.Equal(da, db); gotEq != wantEq {
			t.Errorf("Name.Equal(%q, %q) = %v, want %v", da, db, gotEq, wantEq)
		}

		// Same again, but backwards.
		gotCmp = domain.Name.Compare(db, da)
		if want := -tc.want; gotCmp != want {
			t.Errorf("Name.Compare(%q, %q) = %d, want %d", db, da, gotCmp, want)
		}
		if gotEq := domain.Name.Equal(db, da); gotEq != wantEq {
			t.Errorf("Name.Equal(%q, %q) = %v, want %v", db, da, gotEq, wantEq)
		}
	}
}
