package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sebastienferry/mongolastic/internal/pkg/commands"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"
)

type CommandApi struct {
	commands chan<- commands.Command
}

func NewCommandApi(commands chan<- commands.Command) *CommandApi {
	return &CommandApi{
		commands: commands,
	}
}

func (a *CommandApi) Pause(c *gin.Context) {
	a.send(c, commands.CmdPause)
}

func (a *CommandApi) Resume(c *gin.Context) {
	a.send(c, commands.CmdResume)
}

func (a *CommandApi) Stop(c *gin.Context) {
	a.send(c, commands.CmdStop)
}

func (a *CommandApi) send(c *gin.Context, cmd commands.Command) {
	select {
	case a.commands <- cmd:
		log.Info(cmd.String(), " command sent")
		c.Status(http.StatusOK)
	default:
		log.Warn(cmd.String(), " command not sent")
		// Probably due to too many commands enqueued
		c.Status(http.StatusTooManyRequests)
	}
}
