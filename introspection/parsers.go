package introspection

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/zalando-incubator/tokkit"
)

// Parser decodes a TokenInfo from an introspection response body. Field
// names differ by authorization server dialect; see the concrete
// parsers below.
type Parser interface {
	Parse(body []byte) (tokkit.TokenInfo, error)
}

// fieldParser implements Parser against three configurable field names
// using gjson, which naturally distinguishes a scope field that arrives
// as a JSON array from one that arrives as a single space-separated
// string.
type fieldParser struct {
	userIDField  string
	scopeField   string
	expiresField string
}

func (p fieldParser) Parse(body []byte) (tokkit.TokenInfo, error) {
	if !gjson.ValidBytes(body) {
		return tokkit.TokenInfo{}, InvalidResponseContent("response body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return tokkit.TokenInfo{}, InvalidResponseContent("expected a JSON object")
	}

	var userID *tokkit.UserID
	if uid := root.Get(p.userIDField); uid.Exists() {
		if uid.Type != gjson.String {
			return tokkit.TokenInfo{}, InvalidResponseContent("expected a string user id field " + p.userIDField)
		}
		u := tokkit.UserID(uid.String())
		userID = &u
	}

	scopeRes := root.Get(p.scopeField)
	var scopes []tokkit.Scope
	switch {
	case !scopeRes.Exists():
		scopes = nil
	case scopeRes.IsArray():
		for _, elem := range scopeRes.Array() {
			if elem.Type != gjson.String {
				return tokkit.TokenInfo{}, InvalidResponseContent("expected a string scope element")
			}
			scopes = append(scopes, tokkit.Scope(elem.String()))
		}
	case scopeRes.Type == gjson.String:
		scopes = tokkit.SplitScopes(scopeRes.String())
	default:
		return tokkit.TokenInfo{}, InvalidResponseContent("expected an array or string for scopes")
	}

	expiresRes := root.Get(p.expiresField)
	if !expiresRes.Exists() || expiresRes.Type != gjson.Number {
		return tokkit.TokenInfo{}, InvalidResponseContent("missing or non-numeric expires field " + p.expiresField)
	}
	if expiresRes.Num < 0 {
		return tokkit.TokenInfo{}, InvalidResponseContent("expires field must not be negative")
	}

	active := true
	if activeRes := root.Get("active"); activeRes.Exists() {
		active = activeRes.Bool()
	}

	return tokkit.TokenInfo{
		Active:           active,
		UserID:           userID,
		Scopes:           scopes,
		ExpiresInSeconds: uint64(expiresRes.Num),
	}, nil
}

// PlanBParser decodes Plan B style responses (uid/scope/expires_in).
// https://planb.readthedocs.io/en/latest/intro.html#token-info
var PlanBParser Parser = fieldParser{userIDField: "uid", scopeField: "scope", expiresField: "expires_in"}

// GoogleV3Parser decodes Google OAuth2 v3 tokeninfo responses
// (user_id/scope/expires_in).
var GoogleV3Parser Parser = fieldParser{userIDField: "user_id", scopeField: "scope", expiresField: "expires_in"}

// AmazonParser decodes Amazon Login with Amazon responses
// (user_id/scope/exp).
var AmazonParser Parser = fieldParser{userIDField: "user_id", scopeField: "scope", expiresField: "exp"}

// NewConfigurableParser builds a Parser with caller-chosen field names,
// e.g. driven by TOKKIT_TOKEN_INFO_PARSER_*_FIELD environment variables.
func NewConfigurableParser(userIDField, scopeField, expiresField string) Parser {
	return fieldParser{userIDField: userIDField, scopeField: scopeField, expiresField: expiresField}
}

// Marshal re-serializes a TokenInfo back to JSON in the PlanB-style
// field convention.
func Marshal(info tokkit.TokenInfo) ([]byte, error) {
	out := []byte("{}")
	var err error
	out, err = sjson.SetBytes(out, "active", info.Active)
	if err != nil {
		return nil, err
	}
	if info.UserID != nil {
		out, err = sjson.SetBytes(out, "uid", string(*info.UserID))
		if err != nil {
			return nil, err
		}
	}
	scopeStrings := make([]string, len(info.Scopes))
	for i, s := range info.Scopes {
		scopeStrings[i] = string(s)
	}
	out, err = sjson.SetBytes(out, "scope", scopeStrings)
	if err != nil {
		return nil, err
	}
	out, err = sjson.SetBytes(out, "expires_in", info.ExpiresInSeconds)
	if err != nil {
		return nil, err
	}
	return out, nil
}
