package wallet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestSessionPublishesConnectionChanges(t *testing.T) {
	s := NewSession()
	if _, ok := s.Account(); ok {
		t.Fatal("new session reports connected")
	}
	ch := make(chan ConnectionEvent, 2)
	sub := s.SubscribeConnection(ch)
	defer sub.Unsubscribe()

	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	s.Connect(addr)
	if have, ok := s.Account(); !ok || have != addr {
		t.Fatalf("account mismatch: have %s ok=%v", have.Hex(), ok)
	}
	s.Disconnect()

	for _, want := range []ConnectionEvent{{addr, true}, {addr, false}} {
		select {
		case ev := <-ch:
			if ev != want {
				t.Fatalf("event mismatch: have %+v want %+v", ev, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for connection event")
		}
	}
}

func TestLoadKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	raw, err := LoadKey(KeyConfig{Key: hexutil.Encode(crypto.FromECDSA(key))})
	if err != nil {
		t.Fatalf("load raw key: %v", err)
	}
	if crypto.PubkeyToAddress(raw.PublicKey) != want {
		t.Fatal("raw key address mismatch")
	}

	blob, err := keystore.EncryptKey(&keystore.Key{Address: want, PrivateKey: key}, "secret", keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatalf("encrypt key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}
	fromFile, err := LoadKey(KeyConfig{Keyfile: path, Password: "secret"})
	if err != nil {
		t.Fatalf("load keyfile: %v", err)
	}
	if crypto.PubkeyToAddress(fromFile.PublicKey) != want {
		t.Fatal("keyfile address mismatch")
	}
	if _, err := LoadKey(KeyConfig{Keyfile: path, Password: "wrong"}); err == nil {
		t.Fatal("expected wrong password to fail")
	}
	if _, err := LoadKey(KeyConfig{}); err != ErrNoKey {
		t.Fatalf("have %v want %v", err, ErrNoKey)
	}
}
