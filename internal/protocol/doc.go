// Package protocol implements the line-oriented wire format shared by the
// relay server, publishers and forwarding clients.
//
// # Grammar
//
// Every message is a single line terminated by "\r\n" or "\n":
//
//	[<id> ][+|-]<COMMAND>[ <arg>...][ :<trailing>]
//
//   - id: optional uint32 correlation id, echoed on replies
//   - sign: present only on replies; "+" for success, "-" for failure
//   - command: letters, digits and underscores, case-insensitive
//   - args: space separated, may not contain spaces or ':'
//   - trailing: free text after ':' running to the end of the line
//
// Replies are rendered as
//
//	[<id> ]<+|-><COMMAND>[ <arg>...][ : <trailing>]\r\n
//
// and failure replies carry a Code as their first argument.
//
// # Notification frames
//
// A SEND is fanned out as an unsigned frame of lines:
//
//	NOTIFY_START <user> <id>
//	TITLE: <title>
//	TAGS: <tag> <tag>
//	BODY: <line>
//	NOTIFY_END <id>
//
// TITLE and TAGS are present only when set; BODY repeats once per body line.
// Assembler rebuilds the notification on the receiving side.
package protocol
