package proto

// Commands sent or received by the engine.
const (
	CmdAuthenticate = "AUTHENTICATE"
	CmdAway         = "AWAY"
	CmdCap          = "CAP"
	CmdError        = "ERROR"
	CmdJoin         = "JOIN"
	CmdKick         = "KICK"
	CmdMode         = "MODE"
	CmdNick         = "NICK"
	CmdNotice       = "NOTICE"
	CmdPart         = "PART"
	CmdPass         = "PASS"
	CmdPing         = "PING"
	CmdPong         = "PONG"
	CmdPrivmsg      = "PRIVMSG"
	CmdQuit         = "QUIT"
	CmdTagmsg       = "TAGMSG"
	CmdTopic        = "TOPIC"
	CmdUser         = "USER"
	CmdWho          = "WHO"
	CmdWhois        = "WHOIS"
)

// Numeric replies, per the standard registry.
const (
	RplWelcome       = "001" // "Welcome to the Internet Relay Network <nick>!<user>@<host>"
	RplYourHost      = "002"
	RplCreated       = "003"
	RplMyInfo        = "004"
	RplISupport      = "005" // CASEMAPPING, CHANTYPES, PREFIX, ...
	RplUModeIs       = "221"
	RplAway          = "301"
	RplUnaway        = "305"
	RplNowAway       = "306"
	RplChannelModeIs = "324"
	RplNoTopic       = "331"
	RplTopic         = "332"
	RplTopicWhoTime  = "333"
	RplNameReply     = "353"
	RplEndOfNames    = "366"
	RplMOTD          = "372"
	RplMOTDStart     = "375"
	RplEndOfMOTD     = "376"

	ErrNoSuchNick       = "401"
	ErrNoSuchChannel    = "403"
	ErrNoMOTD           = "422"
	ErrNoNicknameGiven  = "431"
	ErrErroneusNickname = "432"
	ErrNicknameInUse    = "433"
	ErrNickCollision    = "436"
	ErrUnavailResource  = "437"
	ErrNotRegistered    = "451"
	ErrPasswdMismatch   = "464"

	RplLoggedIn    = "900"
	RplLoggedOut   = "901"
	ErrNickLocked  = "902"
	RplSASLSuccess = "903"
	ErrSASLFail    = "904"
	ErrSASLTooLong = "905"
	ErrSASLAborted = "906"
	ErrSASLAlready = "907"
	RplSASLMechs   = "908"
)
