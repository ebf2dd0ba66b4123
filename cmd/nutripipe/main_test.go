package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/BTreeMap/NutriPipe/internal/vault"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("execute root help: %v", err)
	}
	for _, sub := range []string{"run", "keygen", "remind", "users", "token"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help should list %q:\n%s", sub, out)
		}
	}
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "keygen")
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	if _, err := vault.NewFromBase64(strings.TrimSpace(out)); err != nil {
		t.Errorf("keygen output is not a usable key: %v", err)
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("API_JWT_SECRET", "")
	if _, err := execute(t, "token"); err == nil {
		t.Error("token without API_JWT_SECRET should fail")
	}
}

func TestToken(t *testing.T) {
	t.Setenv("API_JWT_SECRET", "s3cret")
	out, err := execute(t, "token", "--subject", "ops", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	if parts := strings.Split(strings.TrimSpace(out), "."); len(parts) != 3 {
		t.Errorf("expected a JWT, got %q", out)
	}
}

func TestUsersOnEmptyStore(t *testing.T) {
	key, _ := vault.GenerateKey()
	t.Setenv("NUTRIPIPE_ENCRYPTION_KEY", key)
	t.Setenv("DATABASE_URL", "")
	out, err := execute(t, "users", "--state-dir", t.TempDir())
	if err != nil {
		t.Fatalf("users failed: %v", err)
	}
	if !strings.Contains(out, "0 registered users") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestUsersRequiresKey(t *testing.T) {
	t.Setenv("NUTRIPIPE_ENCRYPTION_KEY", "")
	if _, err := execute(t, "users", "--state-dir", t.TempDir()); err == nil {
		t.Error("users without an encryption key should fail")
	}
}
