package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Status feed layer.
	ErrBadStatus   = "E_BAD_STATUS"
	ErrDuplicateID = "E_DUPLICATE_ID"
	ErrStaleSeq    = "E_STALE"
	ErrOfficeBusy  = "E_OFFICE_BUSY"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadStatus:       {},
	ErrDuplicateID:     {},
	ErrStaleSeq:        {},
	ErrOfficeBusy:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
