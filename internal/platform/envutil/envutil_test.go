package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "abc")
	if got := Int("ENVUTIL_TEST_INT", 7); got != 7 {
		t.Fatalf("want=7 got=%d", got)
	}
	t.Setenv("ENVUTIL_TEST_INT", " 12 ")
	if got := Int("ENVUTIL_TEST_INT", 7); got != 12 {
		t.Fatalf("want=12 got=%d", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{"yes": true, "ON": true, "0": false, "off": false}
	for raw, want := range cases {
		t.Setenv("ENVUTIL_TEST_BOOL", raw)
		if got := Bool("ENVUTIL_TEST_BOOL", !want); got != want {
			t.Fatalf("%q: want=%v got=%v", raw, want, got)
		}
	}
	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	if got := Bool("ENVUTIL_TEST_BOOL", true); !got {
		t.Fatalf("unparseable value should keep default")
	}
}

func TestDurationAndFloat(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_DUR", "250ms")
	if got := Duration("ENVUTIL_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("want=250ms got=%s", got)
	}
	t.Setenv("ENVUTIL_TEST_FLOAT", "1.5")
	if got := Float("ENVUTIL_TEST_FLOAT", 2); got != 1.5 {
		t.Fatalf("want=1.5 got=%v", got)
	}
	if got := String("ENVUTIL_TEST_UNSET_STRING", "def"); got != "def" {
		t.Fatalf("want=def got=%q", got)
	}
}
