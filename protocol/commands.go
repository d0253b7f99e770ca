package protocol

// Command ids. A response carries the id of the command it answers.
const (
	CmdIdentify          uint16 = 0  // -> version string
	CmdConfigKeyboard    uint16 = 1  // clock data clock_pd data_pd edge_timeout_ms inhibit_us
	CmdSetValidation     uint16 = 2  // start stop parity (1 = ignore)
	CmdGetValidation     uint16 = 3  // -> start stop parity
	CmdReceive           uint16 = 4  // -> byte
	CmdSend              uint16 = 5  // byte
	CmdSetLEDs           uint16 = 6  // num caps scroll
	CmdKeyEvents         uint16 = 7  // ignore_break ignore_typematic keys
	CmdAllKeyEvents      uint16 = 8  // ignore_break ignore_typematic
	CmdSetTypematic      uint16 = 9  // rate delay_ms -> rate delay_ms
	CmdSetScanCodeSet    uint16 = 10 // set
	CmdEnable            uint16 = 11
	CmdDisable           uint16 = 12
	CmdDefault           uint16 = 13
	CmdReset             uint16 = 14 // -> byte
	CmdResend            uint16 = 15 // -> byte
	CmdEcho              uint16 = 16 // -> byte
	CmdGetKeyboardStatus uint16 = 17 // -> configured state last_ack
	CmdGetDictionary     uint16 = 18 // offset count -> offset data
)

// Status is the outcome code following the command id in a response
type Status uint8

const (
	StatusOK Status = iota
	StatusFraming
	StatusAbort // command step got
	StatusInvalidArgument
	StatusTimeout
	StatusNotConfigured
	StatusUnknownCommand
	StatusMalformed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFraming:
		return "framing error"
	case StatusAbort:
		return "aborted"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusTimeout:
		return "timeout"
	case StatusNotConfigured:
		return "not configured"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusMalformed:
		return "malformed request"
	default:
		return "error"
	}
}

// Framing status detail bits
const (
	FramingBadStart  = 1 << 0
	FramingBadStop   = 1 << 1
	FramingBadParity = 1 << 2
)
