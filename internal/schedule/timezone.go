package schedule

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// timezoneKeys are the address-payload fields that may carry an IANA timezone
// identifier, tried in priority order
var timezoneKeys = []string{
	"timezone",
	"timeZone",
	"tz",
	"ianaTimezone",
	"iana_time_zone",
	"time_zone",
}

// ResolveTimezone extracts an IANA timezone identifier from a facility's
// free-form address payload. The first non-empty candidate accepted by the
// runtime's timezone database wins. Returns "" when no usable zone is found;
// fallback policy belongs to the caller (job generation falls back to UTC,
// window enforcement treats a missing zone as a hard error).
func ResolveTimezone(address []byte) string {
	if len(address) == 0 {
		return ""
	}
	for _, key := range timezoneKeys {
		v := gjson.GetBytes(address, key)
		if v.Type != gjson.String {
			continue
		}
		name := strings.TrimSpace(v.String())
		if name == "" {
			continue
		}
		if _, err := time.LoadLocation(name); err == nil {
			return name
		}
	}
	return ""
}
