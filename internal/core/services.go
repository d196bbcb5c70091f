package core

import (
	"github.com/jbbskl/finalsoftware/internal/timerule"
)

type Services struct {
	BotInstance *BotInstanceService
	Phase       *PhaseService
	Schedule    *ScheduleService
	Run         *RunService
}

func NewServices(db DB, rules *timerule.Rules) *Services {
	return &Services{
		BotInstance: NewBotInstanceService(db),
		Phase:       NewPhaseService(db),
		Schedule:    NewScheduleService(db, rules),
		Run:         NewRunService(db),
	}
}
