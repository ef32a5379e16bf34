package commands

const (
	CmdIdStop   = 1
	CmdIdPause  = 2
	CmdIdResume = 3
)

// Commands are sent by the api and applied by the migration between pages.
type Command struct {
	Id        int
	Arguments []string
}

var (
	CmdStop   = Command{Id: CmdIdStop}
	CmdPause  = Command{Id: CmdIdPause}
	CmdResume = Command{Id: CmdIdResume}
)

func (c Command) String() string {
	switch c.Id {
	case CmdIdStop:
		return "stop"
	case CmdIdPause:
		return "pause"
	case CmdIdResume:
		return "resume"
	}
	return "unknown"
}

// Queue of pending commands
func NewQueue(size int) chan Command {
	return make(chan Command, size)
}
