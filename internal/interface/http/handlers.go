package http

import (
	"net/http"

	"github.com/wakeup-hub/wakeup-hub/internal/application/command"
	"github.com/wakeup-hub/wakeup-hub/internal/application/query"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/sleep"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE BODIES
// ══════════════════════════════════════════════════════════════════════════════

type alarmResponse struct {
	*query.UserView
	Alarm alarm.Alarm `json:"alarm"`
}

type sessionResponse struct {
	*query.UserView
	Session sleep.Session `json:"session"`
}

type rewardResponse struct {
	*query.UserView
	Reward challenge.Reward `json:"reward"`
}

func (s *Server) view(u *user.User) *query.UserView {
	return query.BuildUserView(u, s.deps.Now())
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports liveness along with the state of every check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.HealthChecker.Check(r.Context()))
}

// handleReady answers 503 until every dependency responds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Signup.Handle(r.Context(), command.SignupCommand{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Timezone:    req.Timezone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, s.view(res.User))
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Signin.Handle(r.Context(), command.SigninCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.view(res.User))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := s.deps.GetUser.Handle(r.Context(), query.GetUserQuery{UserID: req.UserID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

// ══════════════════════════════════════════════════════════════════════════════
// ALARMS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleCreateAlarm(w http.ResponseWriter, r *http.Request) {
	var req createAlarmRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.CreateAlarm.Handle(r.Context(), command.CreateAlarmCommand{
		UserID: req.UserID,
		Hour:   *req.Hour,
		Minute: *req.Minute,
		Days:   req.Days,
		Label:  req.Label,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alarmResponse{UserView: s.view(res.User), Alarm: res.Alarm})
}

func (s *Server) handleEditAlarm(w http.ResponseWriter, r *http.Request) {
	var req editAlarmRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.EditAlarm.Handle(r.Context(), command.EditAlarmCommand{
		UserID:  req.UserID,
		AlarmID: req.AlarmID,
		Hour:    req.Hour,
		Minute:  req.Minute,
		Days:    req.Days,
		Label:   req.Label,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alarmResponse{UserView: s.view(res.User), Alarm: res.Alarm})
}

func (s *Server) handleToggleAlarm(w http.ResponseWriter, r *http.Request) {
	var req toggleAlarmRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.ToggleAlarm.Handle(r.Context(), command.ToggleAlarmCommand{
		UserID:  req.UserID,
		AlarmID: req.AlarmID,
		Enabled: req.Enabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alarmResponse{UserView: s.view(res.User), Alarm: res.Alarm})
}

func (s *Server) handleDeleteAlarm(w http.ResponseWriter, r *http.Request) {
	var req alarmRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.DeleteAlarm.Handle(r.Context(), command.DeleteAlarmCommand{
		UserID:  req.UserID,
		AlarmID: req.AlarmID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.view(res.User))
}

// ══════════════════════════════════════════════════════════════════════════════
// SLEEP & CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleStartSleep(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.StartSleep.Handle(r.Context(), command.StartSleepCommand{UserID: req.UserID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sessionResponse{UserView: s.view(res.User), Session: res.Session})
}

func (s *Server) handleEndSleep(w http.ResponseWriter, r *http.Request) {
	var req endSleepRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.EndSleep.Handle(r.Context(), command.EndSleepCommand{
		UserID:    req.UserID,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sessionResponse{UserView: s.view(res.User), Session: res.Session})
}

func (s *Server) handleSaveWakeUp(w http.ResponseWriter, r *http.Request) {
	var req wakeUpRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.SaveWakeUp.Handle(r.Context(), command.SaveWakeUpCommand{
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		Game:         req.Game,
		SnoozeCount:  req.SnoozeCount,
		SolveSeconds: req.SolveSeconds,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.view(res.User))
}

func (s *Server) handleNextChallenge(w http.ResponseWriter, r *http.Request) {
	var req nextChallengeRequest
	if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.CollectReward.Handle(r.Context(), command.CollectRewardCommand{
		UserID:        req.UserID,
		Challenge:     req.Challenge,
		ExpectedLevel: req.ExpectedLevel,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rewardResponse{UserView: s.view(res.User), Reward: res.Reward})
}

func (s *Server) handleChallengeTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, query.ChallengeTable())
}

// ══════════════════════════════════════════════════════════════════════════════
// FRIENDS
// ══════════════════════════════════════════════════════════════════════════════

type friendOp int

const (
	friendSend friendOp = iota
	friendAccept
	friendDecline
	friendRemove
)

// handleFriend serves the four friend endpoints, which share a body.
func (s *Server) handleFriend(op friendOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req friendRequest
		if err := decode(w, r, s.config.MaxBodyBytes, &req); err != nil {
			writeError(w, r, err)
			return
		}

		cmd := command.FriendCommand{UserID: req.UserID, OtherID: req.FriendID}
		var (
			res *command.UserResult
			err error
		)
		switch op {
		case friendSend:
			res, err = s.deps.Friends.SendRequest(r.Context(), cmd)
		case friendAccept:
			res, err = s.deps.Friends.AcceptRequest(r.Context(), cmd)
		case friendDecline:
			res, err = s.deps.Friends.DeclineRequest(r.Context(), cmd)
		default:
			res, err = s.deps.Friends.RemoveFriend(r.Context(), cmd)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, s.view(res.User))
	}
}
