package canonical

import (
	"strings"
	"testing"
)

func TestResolve_Table(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		typ  EntityType
		in   string
		want string
		ok   bool
	}{
		{"punctuation and padding", Page, "  Pricing & Plans!!", "page_pricing_plans", true},
		{"already clean", Page, "pricing plans", "page_pricing_plans", true},
		{"tabs and newlines", Keyword, "best\tcrm\n tools", "keyword_best_crm_tools", true},
		{"accents stripped", Product, "Café Crème", "product_caf_crme", true},
		{"fullwidth stripped", Campaign, "ＳＰＲＩＮＧ Sale", "campaign_sale", true},
		{"digits kept", Email, "Newsletter #42", "email_newsletter_42", true},
		{"path stripped", Page, "/blog/how-to", "page_bloghowto", true},
		{"only punctuation", Page, "!!! ???", "", false},
		{"empty", Page, "", "", false},
		{"whitespace only", Page, "   \t ", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(tc.typ, tc.in)
			if ok != tc.ok {
				t.Fatalf("Resolve(%q) ok=%v want %v", tc.in, ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("Resolve(%q)=%q want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolver_FoldUnicode(t *testing.T) {
	t.Parallel()

	folding := Resolver{FoldUnicode: true}
	cases := []struct {
		in, plain, folded string
	}{
		{"Café Menu", "page_caf_menu", "page_cafe_menu"},
		{"ＳＰＲＩＮＧ Sale", "page_sale", "page_spring_sale"},
		{"Pricing & Plans", "page_pricing_plans", "page_pricing_plans"},
	}
	for _, tc := range cases {
		if got, _ := (Resolver{}).Resolve(Page, tc.in); got != tc.plain {
			t.Fatalf("plain %q=%q want %q", tc.in, got, tc.plain)
		}
		if got, _ := folding.Resolve(Page, tc.in); got != tc.folded {
			t.Fatalf("folded %q=%q want %q", tc.in, got, tc.folded)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	a, _ := Resolve(Page, "  Pricing & Plans!!")
	b, _ := Resolve(Page, "  Pricing & Plans!!")
	c, _ := Resolve(Page, "pricing plans")
	if a != b || a != c {
		t.Fatalf("ids differ: %q %q %q", a, b, c)
	}
}

func TestResolve_CollisionIsAccepted(t *testing.T) {
	t.Parallel()

	a, _ := Resolve(Page, "Pricing!")
	b, _ := Resolve(Page, "pricing")
	if a != b {
		t.Fatalf("expected collision to share id, got %q and %q", a, b)
	}
}

func TestName_TruncatesAndTrims(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("abcd ", 20)
	got := Name(long)
	if len(got) > MaxNameLen {
		t.Fatalf("len=%d exceeds %d: %q", len(got), MaxNameLen, got)
	}
	if strings.HasPrefix(got, "_") || strings.HasSuffix(got, "_") {
		t.Fatalf("underscores not trimmed: %q", got)
	}

	// truncation landing right after a separator must not leave a dangling underscore
	edge := strings.Repeat("a", 49) + " tail"
	if got := Name(edge); got != strings.Repeat("a", 49) {
		t.Fatalf("got %q", got)
	}

	// a leading separator counts toward the limit before it is trimmed
	for _, prefix := range []string{" ", "!! ", "\t"} {
		if got := Name(prefix + strings.Repeat("a", 60)); got != strings.Repeat("a", 49) {
			t.Fatalf("prefix %q: len=%d %q", prefix, len(got), got)
		}
	}
}

func TestParseEntityType(t *testing.T) {
	t.Parallel()

	if got, ok := ParseEntityType(" Traffic_Source "); !ok || got != TrafficSource {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if _, ok := ParseEntityType("widget"); ok {
		t.Fatal("unknown type should not parse")
	}
	all := AllEntityTypes()
	if len(all) != 11 || all[0] != Backlinks {
		t.Fatalf("unexpected type list %v", all)
	}
}

func TestSources_EveryTypeHasOneOwner(t *testing.T) {
	t.Parallel()

	for _, et := range AllEntityTypes() {
		src, ok := OwnerOf(et)
		if !ok {
			t.Fatalf("%s has no owning source", et)
		}
		if !src.Owns(et) {
			t.Fatalf("%s does not own %s", src, et)
		}
		for _, other := range AllSources() {
			if other != src && other.Owns(et) {
				t.Fatalf("%s also owned by %s", et, other)
			}
		}
	}
	if Source("hubspot").Valid() || Source("").Owns(Page) {
		t.Fatal("unknown source must own nothing")
	}
	if got := DataForSEO.EntityTypes(); len(got) != 3 {
		t.Fatalf("dataforseo owns %v", got)
	}
}
