package client

import "github.com/DoyleJ11/werewolf-client/internal/session"

// Presenter receives everything the player should see. Every method is called
// from the client's dispatch goroutine, one at a time, in protocol order.
type Presenter interface {
	OnLog(text string, severity session.Severity)
	OnRosterChanged(roster []string)
	OnRoleRevealed(role, description string)
	OnPhaseChanged(phase session.Phase)
	OnVotePrompt(prompt session.VotePrompt)
	OnDeath()
	OnGameEnd(winner string)
	OnConnectionLost(reason error)
}

// NopPresenter ignores everything. Embed it to implement part of Presenter.
type NopPresenter struct{}

func (NopPresenter) OnLog(string, session.Severity) {}
func (NopPresenter) OnRosterChanged([]string) {}
func (NopPresenter) OnRoleRevealed(string, string) {}
func (NopPresenter) OnPhaseChanged(session.Phase) {}
func (NopPresenter) OnVotePrompt(session.VotePrompt) {}
func (NopPresenter) OnDeath() {}
func (NopPresenter) OnGameEnd(string) {}
func (NopPresenter) OnConnectionLost(error) {}
