package crypto

import "testing"

func TestRoundTrip(t *testing.T) {
	c, err := New("correct horse", "account-salt-1")
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := c.EncryptField("hello, world")
	if err != nil {
		t.Fatal(err)
	}
	if sealed == "hello, world" {
		t.Fatal("field left in plaintext")
	}
	plain, err := c.DecryptField(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if plain != "hello, world" {
		t.Errorf("round trip = %q", plain)
	}
}

func TestSameKeyAcrossInstances(t *testing.T) {
	a, err := New("pass", "salt")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("pass", "salt")
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := a.EncryptField("cross-device")
	if err != nil {
		t.Fatal(err)
	}
	plain, err := b.DecryptField(sealed)
	if err != nil {
		t.Fatalf("second device could not decrypt: %v", err)
	}
	if plain != "cross-device" {
		t.Errorf("got %q", plain)
	}
}

func TestWrongKeyFails(t *testing.T) {
	a, _ := New("pass", "salt")
	b, _ := New("other", "salt")
	sealed, _ := a.EncryptField("secret")
	if _, err := b.DecryptField(sealed); err == nil {
		t.Error("decryption under wrong key should fail")
	}
}

func TestEmptyInputsRejected(t *testing.T) {
	if _, err := New("", "salt"); err == nil {
		t.Error("empty passphrase accepted")
	}
	if _, err := New("pass", ""); err == nil {
		t.Error("empty salt accepted")
	}
}
