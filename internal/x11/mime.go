package x11

import "strings"

const (
	mimeTextUTF8 = "text/plain;charset=utf-8"
	mimeText     = "text/plain"
)

// mimeForTarget maps a conversion target name to a MIME type. Protocol
// targets such as TARGETS or TIMESTAMP have none.
func mimeForTarget(name string) (string, bool) {
	switch name {
	case "UTF8_STRING":
		return mimeTextUTF8, true
	case "STRING", "TEXT":
		return mimeText, true
	}
	if strings.Contains(name, "/") {
		return name, true
	}
	return "", false
}

// targetForMIME is the inverse of mimeForTarget.
func targetForMIME(mime string) string {
	switch strings.ToLower(strings.ReplaceAll(mime, " ", "")) {
	case mimeTextUTF8, "utf8_string":
		return "UTF8_STRING"
	case mimeText:
		return "STRING"
	}
	return mime
}

// offersFromTargets converts a TARGETS list to distinct MIME types,
// keeping the owner's order.
func offersFromTargets(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, name := range names {
		mime, ok := mimeForTarget(name)
		if !ok {
			continue
		}
		if _, dup := seen[mime]; dup {
			continue
		}
		seen[mime] = struct{}{}
		out = append(out, mime)
	}
	return out
}

// targetsFromOffers lists the conversion targets announced for offers.
func targetsFromOffers(offers []string) []string {
	out := []string{"TARGETS"}
	seen := map[string]struct{}{"TARGETS": {}}
	for _, mime := range offers {
		name := targetForMIME(mime)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
