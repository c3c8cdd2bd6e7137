package auth

import (
	"context"
	"testing"
)

func TestKeyFnFromEnv(t *testing.T) {
	env := map[string]string{
		StateKeyEnvVar: "blmHX4evD5FygUEa3EWxjzuAPF7lC4sKuWBrhgti/20=",
	}
	get := func(k string) string { return env[k] }
	set := func(k, v string) error { env[k] = v; return nil }

	keyfn, err := KeyFnFromEnv(StateKeyEnvVar, get, set)
	if err != nil {
		t.Fatal(err)
	}
	if env[StateKeyEnvVar] != "" {
		t.Fatal("reading the key should remove it from the environment")
	}
	first, err := keyfn(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	first.Zero()
	second, err := keyfn(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if *second == (Key{}) {
		t.Fatal("zeroing a returned key must not affect the next call")
	}
	if second[0] != 0x6e {
		t.Fatalf("unexpected key byte %x", second[0])
	}
}

func TestKeyFnFromEnvGeneratesWhenEmpty(t *testing.T) {
	get := func(string) string { return "" }
	set := func(string, string) error { return nil }
	keyfn, err := KeyFnFromEnv(StateKeyEnvVar, get, set)
	if err != nil {
		t.Fatal(err)
	}
	k, err := keyfn(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if *k == (Key{}) {
		t.Fatal("generated key should not be all zeroes")
	}
}

func TestKeyFnFromEnvRejectsShortKeys(t *testing.T) {
	get := func(string) string { return "c2hvcnQ=" }
	set := func(string, string) error { return nil }
	if _, err := KeyFnFromEnv(StateKeyEnvVar, get, set); err == nil {
		t.Fatal("a short key should be rejected")
	}
}
