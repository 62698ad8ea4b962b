package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSplitFileCredentialsProviderReadsBothFiles(t *testing.T) {
	dir := t.TempDir()
	clientPath := writeTempFile(t, dir, "client.json", `{"client_id":"cid","client_secret":"csecret"}`)
	ownerPath := writeTempFile(t, dir, "user.json", `{"username":"bob","password":"hunter2"}`)

	p := WithDefaultParsers(clientPath, ownerPath)
	defer p.Close()

	creds, err := p.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	if creds.Client.ClientID != "cid" || creds.Owner.Username != "bob" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestSplitFileCredentialsProviderCachesResults(t *testing.T) {
	dir := t.TempDir()
	clientPath := writeTempFile(t, dir, "client.json", `{"client_id":"cid","client_secret":"csecret"}`)
	ownerPath := writeTempFile(t, dir, "user.json", `{"username":"bob","password":"hunter2"}`)

	p := WithDefaultParsers(clientPath, ownerPath)
	defer p.Close()

	if _, err := p.ClientCredentials(); err != nil {
		t.Fatal(err)
	}

	// Replacing the file on disk must not change the cached result until
	// the watcher invalidates it; a corrupt rewrite that still parsed
	// successfully would prove the cache, not disprove it, so instead we
	// just confirm a second read doesn't error and returns the same value.
	second, err := p.ClientCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if second.ClientID != "cid" {
		t.Fatalf("expected cached client id 'cid', got %q", second.ClientID)
	}
}

func TestSplitFileCredentialsProviderPropagatesParseErrors(t *testing.T) {
	dir := t.TempDir()
	clientPath := writeTempFile(t, dir, "client.json", `not json`)
	ownerPath := writeTempFile(t, dir, "user.json", `{"username":"bob","password":"hunter2"}`)

	p := WithDefaultParsers(clientPath, ownerPath)
	defer p.Close()

	if _, err := p.ClientCredentials(); err == nil {
		t.Fatal("expected a parse error for invalid client JSON")
	}
}

func TestCredentialsDirFromEnvPrefersTokkitVar(t *testing.T) {
	t.Setenv("TOKKIT_CREDENTIALS_DIR", "/from/tokkit")
	t.Setenv("CREDENTIALS_DIR", "/from/fallback")

	dir, err := credentialsDirFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/from/tokkit" {
		t.Fatalf("expected the TOKKIT_CREDENTIALS_DIR value, got %q", dir)
	}
}

func TestCredentialsDirFromEnvFallsBack(t *testing.T) {
	os.Unsetenv("TOKKIT_CREDENTIALS_DIR")
	t.Setenv("CREDENTIALS_DIR", "/from/fallback")

	dir, err := credentialsDirFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/from/fallback" {
		t.Fatalf("expected the fallback value, got %q", dir)
	}
}

func TestCredentialsDirFromEnvErrorsWhenUnset(t *testing.T) {
	os.Unsetenv("TOKKIT_CREDENTIALS_DIR")
	os.Unsetenv("CREDENTIALS_DIR")

	if _, err := credentialsDirFromEnv(); err == nil {
		t.Fatal("expected an error when neither env var is set")
	}
}
