package core

// helpOrder fixes the order commands appear in the /help listing.
var helpOrder = []string{
	"/help",
	"/list",
	"/pm",
	"/report",
	"/create_room",
	"/join_room",
	"/leave_room",
	"/view_rooms",
	"/view_users",
	"/m_room",
	"/exit",
}

var helpTopics = map[string]string{
	"/help":        "/help [command] - list commands, or show detail for one command",
	"/list":        "/list - list connected users",
	"/pm":          "/pm <user> <message> - send a private message",
	"/report":      "/report <user> - report a user to the server operators",
	"/create_room": "/create_room <name> - create a new room",
	"/join_room":   "/join_room <name> - join an existing room",
	"/leave_room":  "/leave_room <name> - leave a room you are a member of",
	"/view_rooms":  "/view_rooms - list all rooms",
	"/view_users":  "/view_users <name> - list members of a room you belong to",
	"/m_room":      "/m_room <name> <message> - send a message to a room",
	"/exit":        "/exit - disconnect from the server",
}

// lookupHelp resolves a /help argument, accepting the name with or without
// the leading slash.
func lookupHelp(topic string) (string, bool) {
	if detail, ok := helpTopics[topic]; ok {
		return detail, true
	}
	detail, ok := helpTopics["/"+topic]
	return detail, ok
}
