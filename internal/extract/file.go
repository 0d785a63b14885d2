package extract

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// ErrUndecodable is returned when no encoding in the fallback ladder
// yields usable text.
var ErrUndecodable = errors.New("no encoding produced valid text")

// fallbackEncodings is the ordered ladder tried after plain UTF-8.
var fallbackEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
	{"utf-16", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	{"utf-16le", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)},
	{"utf-16be", unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
	{"iso-8859-1", charmap.ISO8859_1},
}

// invalidRatioLimit rejects a decode when more than 5% of its runes are
// replacement characters.
const invalidRatioLimit = 0.05

// DecodeText decodes raw bytes into a string, trying UTF-8 first and
// then each fallback encoding until one yields mostly-valid non-empty
// text. A UTF-16 byte-order mark or a high density of NUL bytes routes
// straight to the UTF-16 decoders, since legacy multi-byte encodings
// would otherwise swallow such input with few visible errors.
func DecodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM

	if utf8.Valid(data) {
		return string(data), nil
	}

	if looksUTF16(data) {
		for _, enc := range []encoding.Encoding{
			unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
			unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
		} {
			decoded, err := enc.NewDecoder().Bytes(data)
			if err == nil && usableText(string(decoded)) {
				return string(decoded), nil
			}
		}
	}

	for _, fb := range fallbackEncodings {
		decoded, err := fb.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		text := string(decoded)
		if usableText(text) {
			return text, nil
		}
	}

	return "", ErrUndecodable
}

// looksUTF16 reports whether data starts with a UTF-16 byte-order mark
// or carries the NUL-byte density typical of UTF-16 encoded text.
func looksUTF16(data []byte) bool {
	if len(data) >= 2 {
		if (data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF) {
			return true
		}
	}
	nuls := bytes.Count(data, []byte{0x00})
	return nuls > len(data)/5
}

// usableText reports whether a decoded string is non-empty and mostly
// free of replacement characters and stray NULs.
func usableText(text string) bool {
	if text == "" {
		return false
	}
	total, invalid := 0, 0
	for _, r := range text {
		total++
		if r == utf8.RuneError || r == 0 {
			invalid++
		}
	}
	if total == 0 {
		return false
	}
	return float64(invalid)/float64(total) <= invalidRatioLimit
}
