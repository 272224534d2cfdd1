package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// DigestAuth contains the parameters needed for digest authentication
type DigestAuth struct {
	Username string
	Password string
	Realm    string
	Nonce    string
	URI      string
	Qop      string
	Nc       string
	Cnonce   string
	Opaque   string
	Method   string
}

// ParseWWWAuthenticate parses the WWW-Authenticate header from a 401 response.
// Quoted values may contain commas and backslash escapes.
func ParseWWWAuthenticate(header string) map[string]string {
	result := make(map[string]string)

	s := strings.TrimSpace(header)
	s = strings.TrimPrefix(s, "Digest ")

	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			break
		}

		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = strings.TrimLeft(s[eq+1:], " \t")

		var value string
		if strings.HasPrefix(s, `"`) {
			value, s = readQuoted(s[1:])
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				end = len(s)
			}
			value, s = strings.TrimSpace(s[:end]), s[end:]
		}

		if key != "" {
			result[key] = value
		}
	}

	return result
}

// readQuoted reads a quoted-string body up to the closing quote and returns
// the unescaped value and the remaining input.
func readQuoted(s string) (string, string) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case '"':
			return b.String(), s[i+1:]
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), ""
}

// IsDigestChallenge reports whether a WWW-Authenticate value asks for digest auth.
func IsDigestChallenge(header string) bool {
	return strings.HasPrefix(strings.TrimSpace(header), "Digest ")
}

// ComputeDigestResponse calculates the digest response hash
func (d *DigestAuth) ComputeDigestResponse() string {
	// HA1 = MD5(username:realm:password)
	ha1 := md5Hash(fmt.Sprintf("%s:%s:%s", d.Username, d.Realm, d.Password))
	// HA2 = MD5(method:uri)
	ha2 := md5Hash(fmt.Sprintf("%s:%s", d.Method, d.URI))

	if d.Qop == "auth" || d.Qop == "auth-int" {
		return md5Hash(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, d.Nonce, d.Nc, d.Cnonce, d.Qop, ha2))
	}
	return md5Hash(fmt.Sprintf("%s:%s:%s", ha1, d.Nonce, ha2))
}

// BuildAuthorizationHeader creates the Authorization header value
func (d *DigestAuth) BuildAuthorizationHeader() string {
	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, d.Realm),
		fmt.Sprintf(`nonce="%s"`, d.Nonce),
		fmt.Sprintf(`uri="%s"`, d.URI),
		fmt.Sprintf(`response="%s"`, d.ComputeDigestResponse()),
	}

	if d.Qop != "" {
		parts = append(parts,
			fmt.Sprintf(`qop=%s`, d.Qop),
			fmt.Sprintf(`nc=%s`, d.Nc),
			fmt.Sprintf(`cnonce="%s"`, d.Cnonce),
		)
	}

	if d.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, d.Opaque))
	}

	return "Digest " + strings.Join(parts, ", ")
}

// NewDigestAuth builds digest parameters from a parsed challenge.
// When the server offers a qop list, "auth" is preferred.
func NewDigestAuth(username, password, method, uri string, challenge map[string]string) (*DigestAuth, error) {
	d := &DigestAuth{
		Username: username,
		Password: password,
		Realm:    challenge["realm"],
		Nonce:    challenge["nonce"],
		Opaque:   challenge["opaque"],
		Qop:      challenge["qop"],
		Method:   method,
		URI:      uri,
	}

	if d.Qop != "" {
		d.Nc = "00000001"
		cnonce, err := GenerateCnonce()
		if err != nil {
			return nil, err
		}
		d.Cnonce = cnonce
		if strings.Contains(d.Qop, "auth") {
			d.Qop = "auth"
		}
	}

	return d, nil
}

// GenerateCnonce generates a random client nonce
func GenerateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hash(s string) string {
	h := md5.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
