package credentials

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ClientCredentialsParser extracts ClientCredentials from raw file bytes.
type ClientCredentialsParser interface {
	Parse(data []byte) (ClientCredentials, error)
}

// OwnerCredentialsParser extracts OwnerCredentials from raw file bytes.
type OwnerCredentialsParser interface {
	Parse(data []byte) (OwnerCredentials, error)
}

// DefaultClientCredentialsParser parses {"client_id":"...","client_secret":"..."}.
type DefaultClientCredentialsParser struct{}

// Parse implements ClientCredentialsParser.
func (DefaultClientCredentialsParser) Parse(data []byte) (ClientCredentials, error) {
	id, secret, err := parseIDSecret(data, "client_id", "client_secret")
	if err != nil {
		return ClientCredentials{}, err
	}
	return ClientCredentials{ClientID: id, ClientSecret: secret}, nil
}

// DefaultOwnerCredentialsParser parses {"username":"...","password":"..."}.
type DefaultOwnerCredentialsParser struct{}

// Parse implements OwnerCredentialsParser.
func (DefaultOwnerCredentialsParser) Parse(data []byte) (OwnerCredentials, error) {
	user, pass, err := parseIDSecret(data, "username", "password")
	if err != nil {
		return OwnerCredentials{}, err
	}
	return OwnerCredentials{Username: user, Password: pass}, nil
}

// ApplicationOwnerCredentialsParser parses
// {"application_username":"...","application_password":"..."}, for the
// case where the resource owner is an application rather than a person.
type ApplicationOwnerCredentialsParser struct{}

// Parse implements OwnerCredentialsParser.
func (ApplicationOwnerCredentialsParser) Parse(data []byte) (OwnerCredentials, error) {
	user, pass, err := parseIDSecret(data, "application_username", "application_password")
	if err != nil {
		return OwnerCredentials{}, err
	}
	return OwnerCredentials{Username: user, Password: pass}, nil
}

func parseIDSecret(data []byte, idField, secretField string) (string, string, error) {
	if !gjson.ValidBytes(data) {
		return "", "", fmt.Errorf("credentials: not valid JSON")
	}
	root := gjson.ParseBytes(data)
	idRes := root.Get(idField)
	if idRes.Type != gjson.String {
		return "", "", fmt.Errorf("credentials: expected a string in field %q", idField)
	}
	secretRes := root.Get(secretField)
	if secretRes.Type != gjson.String {
		return "", "", fmt.Errorf("credentials: expected a string in field %q", secretField)
	}
	return idRes.String(), secretRes.String(), nil
}
