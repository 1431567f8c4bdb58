package redistore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Record blobs carry the immutable identity of a token or session. Mutable
// state (status, use counter, activity stamps) lives in sibling hash fields
// so the Lua scripts can touch it without rewriting the blob.
const (
	tokenBlobVersion   = 1
	sessionBlobVersion = 1
)

func writeString8(buf *bytes.Buffer, field, v string) error {
	if len(v) > 255 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func readString8(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeString16(buf *bytes.Buffer, field, v string) error {
	if len(v) > 65535 {
		return errors.New(field + " too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readString16(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeToken serializes the identity half of a token. Value, status, use
// count, and the last-use stamp are deliberately absent; they are stored as
// hash fields next to the blob.
func encodeToken(t *goIdentity.Token) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenBlobVersion)

	if err := writeString8(&buf, "token id", t.ID); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(t.Kind))
	if err := writeString8(&buf, "user id", t.UserID); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, "client id", t.ClientID); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(t.Scopes))

	if err := binary.Write(&buf, binary.BigEndian, unixNano(t.CreatedAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixNano(t.ExpiresAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, t.MaxUses); err != nil {
		return nil, err
	}

	if len(t.Origins) > 255 {
		return nil, errors.New("too many origins")
	}
	buf.WriteByte(byte(len(t.Origins)))
	for _, origin := range t.Origins {
		if err := writeString8(&buf, "origin", origin); err != nil {
			return nil, err
		}
	}

	if len(t.Metadata) > 255 {
		return nil, errors.New("too many metadata entries")
	}
	buf.WriteByte(byte(len(t.Metadata)))
	for k, v := range t.Metadata {
		if err := writeString8(&buf, "metadata key", k); err != nil {
			return nil, err
		}
		if err := writeString16(&buf, "metadata value", v); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeToken(data []byte) (*goIdentity.Token, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenBlobVersion {
		return nil, errors.New("invalid token record version")
	}

	t := &goIdentity.Token{}

	if t.ID, err = readString8(r); err != nil {
		return nil, err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	t.Kind = goIdentity.TokenKind(kind)
	if t.UserID, err = readString8(r); err != nil {
		return nil, err
	}
	if t.ClientID, err = readString8(r); err != nil {
		return nil, err
	}
	scopes, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	t.Scopes = goIdentity.ScopeSet(scopes)

	var created, expires int64
	if err := binary.Read(r, binary.BigEndian, &created); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	t.CreatedAt = fromUnixNano(created)
	t.ExpiresAt = fromUnixNano(expires)
	if err := binary.Read(r, binary.BigEndian, &t.MaxUses); err != nil {
		return nil, err
	}

	originCount, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if originCount > 0 {
		t.Origins = make([]string, 0, originCount)
		for i := 0; i < int(originCount); i++ {
			origin, err := readString8(r)
			if err != nil {
				return nil, err
			}
			t.Origins = append(t.Origins, origin)
		}
	}

	metaCount, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if metaCount > 0 {
		t.Metadata = make(map[string]string, metaCount)
		for i := 0; i < int(metaCount); i++ {
			k, err := readString8(r)
			if err != nil {
				return nil, err
			}
			v, err := readString16(r)
			if err != nil {
				return nil, err
			}
			t.Metadata[k] = v
		}
	}

	return t, nil
}

// encodeSession serializes the identity half of a session. The active flag
// and last-activity stamp live as hash fields.
func encodeSession(sess *goIdentity.Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionBlobVersion)

	if err := writeString8(&buf, "session id", sess.ID); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, "user id", sess.UserID); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(sess.Method))

	if err := binary.Write(&buf, binary.BigEndian, unixNano(sess.CreatedAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixNano(sess.ExpiresAt)); err != nil {
		return nil, err
	}

	if err := writeString8(&buf, "client ip", sess.ClientIP); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, "user agent", sess.UserAgent); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeSession(data []byte) (*goIdentity.Session, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionBlobVersion {
		return nil, errors.New("invalid session record version")
	}

	sess := &goIdentity.Session{}

	if sess.ID, err = readString8(r); err != nil {
		return nil, err
	}
	if sess.UserID, err = readString8(r); err != nil {
		return nil, err
	}
	method, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	sess.Method = goIdentity.AuthMethod(method)

	var created, expires int64
	if err := binary.Read(r, binary.BigEndian, &created); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	sess.CreatedAt = fromUnixNano(created)
	sess.ExpiresAt = fromUnixNano(expires)

	if sess.ClientIP, err = readString8(r); err != nil {
		return nil, err
	}
	if sess.UserAgent, err = readString16(r); err != nil {
		return nil, err
	}

	return sess, nil
}
