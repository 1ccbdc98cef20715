package telephony

import "errors"

// errDisabled is returned by PlaceCall when Twilio isn't configured.
var errDisabled = errors.New("telephony: twilio not configured")
