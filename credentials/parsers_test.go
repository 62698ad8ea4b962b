package credentials

import "testing"

func TestDefaultClientCredentialsParser(t *testing.T) {
	creds, err := DefaultClientCredentialsParser{}.Parse([]byte(`{"client_id":"cid","client_secret":"csecret"}`))
	if err != nil {
		t.Fatal(err)
	}
	if creds.ClientID != "cid" || creds.ClientSecret != "csecret" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestDefaultOwnerCredentialsParser(t *testing.T) {
	creds, err := DefaultOwnerCredentialsParser{}.Parse([]byte(`{"username":"bob","password":"hunter2"}`))
	if err != nil {
		t.Fatal(err)
	}
	if creds.Username != "bob" || creds.Password != "hunter2" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestApplicationOwnerCredentialsParser(t *testing.T) {
	creds, err := ApplicationOwnerCredentialsParser{}.Parse([]byte(`{"application_username":"svc","application_password":"s3cret"}`))
	if err != nil {
		t.Fatal(err)
	}
	if creds.Username != "svc" || creds.Password != "s3cret" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestParsersRejectInvalidJSON(t *testing.T) {
	if _, err := (DefaultClientCredentialsParser{}).Parse([]byte(`not json`)); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}

func TestParsersRejectMissingFields(t *testing.T) {
	if _, err := (DefaultClientCredentialsParser{}).Parse([]byte(`{"client_id":"cid"}`)); err == nil {
		t.Fatal("expected an error for a missing client_secret field")
	}
}

func TestParsersRejectNonStringFields(t *testing.T) {
	if _, err := (DefaultOwnerCredentialsParser{}).Parse([]byte(`{"username":123,"password":"x"}`)); err == nil {
		t.Fatal("expected an error for a non-string username field")
	}
}
