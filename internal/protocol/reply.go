package protocol

// Code is a machine-readable failure reason, sent as the first argument of a
// failure reply
type Code int

const (
	CodeMissingArg Code = iota + 1
	CodeAlreadyLoggedIn
	CodeNoLogin
	CodeMissingTrailing
	CodeInvalidArg
	CodeUnknownCmd
	CodeDBFail
	CodeNoDB
	CodeInvalidMessage
	CodeParse
)

var codeNames = map[Code]string{
	CodeMissingArg:      "MISSING_ARG",
	CodeAlreadyLoggedIn: "ALREADY_LOGGED_IN",
	CodeNoLogin:         "NO_LOGIN",
	CodeMissingTrailing: "MISSING_TRAILING",
	CodeInvalidArg:      "INVALID_ARG",
	CodeUnknownCmd:      "UNKNOWN_CMD",
	CodeDBFail:          "DB_FAIL",
	CodeNoDB:            "NO_DB",
	CodeInvalidMessage:  "INVALID_MESSAGE",
	CodeParse:           "PARSE",
}

// String returns the wire form of the code
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseCode maps a wire token back to its Code
func ParseCode(s string) (Code, bool) {
	for code, name := range codeNames {
		if name == s {
			return code, true
		}
	}
	return 0, false
}

// Text returns a pointer to s, for optional trailing fields
func Text(s string) *string {
	return &s
}

// FormatReply renders a reply line:
//
//	[<id> ]<+|-><command>[ <args>...][ : <trailing>]\r\n
func FormatReply(id *uint32, success bool, command string, args []string, trailing *string) string {
	sign := SignFailure
	if success {
		sign = SignSuccess
	}
	return Message{
		ID:        id,
		Sign:      sign,
		Command:   command,
		Arguments: args,
		Trailing:  trailing,
	}.String()
}

// FormatFailure renders a failure reply whose first argument is code
func FormatFailure(id *uint32, command string, code Code, trailing *string) string {
	return FormatReply(id, false, command, []string{code.String()}, trailing)
}
