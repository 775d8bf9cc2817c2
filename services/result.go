package services

import (
	"errors"

	"github.com/wfunc/gardien/models"
)

var (
	ErrUnknownUser     = errors.New("unknown user")
	ErrUnknownQuest    = errors.New("unknown quest")
	ErrNotAdmin        = errors.New("admin role required")
	ErrAdminCapReached = errors.New("admin limit reached")
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidDevice   = errors.New("device id is required")
	ErrNotLoggedIn     = errors.New("no user bound to device")
	ErrInvalidDecision = errors.New("decision must be approve or reject")
)

// ResultKind tells apart the ways a submission can end.
type ResultKind string

const (
	// Passed: the quest is (or already was) completed.
	Passed ResultKind = "passed"
	// Rejected: the proof was judged and found wanting.
	Rejected ResultKind = "rejected"
	// Unavailable: the proof could not be judged. The player may retry or
	// ask for manual review.
	Unavailable ResultKind = "unavailable"
	// Locked: the quest cannot be attempted in its current state.
	Locked ResultKind = "locked"
	// Invalid: the submission does not fit the quest.
	Invalid ResultKind = "invalid"
)

// Result is the outcome of a player action on a quest.
type Result struct {
	Success       bool                  `json:"success"`
	Kind          ResultKind            `json:"kind"`
	Message       string                `json:"message"`
	Granted       *models.InventoryItem `json:"granted,omitempty"`
	GameCompleted bool                  `json:"game_completed,omitempty"`
	// Err holds the classifier error behind an Unavailable result.
	Err error `json:"-"`
}

func passed(msg string) Result { return Result{Success: true, Kind: Passed, Message: msg} }
func failed(kind ResultKind, msg string) Result {
	return Result{Kind: kind, Message: msg}
}

// Player facing messages.
const (
	MsgAlreadyDone      = "Quête déjà accomplie."
	MsgLocked           = "Cette quête est encore scellée."
	MsgNotStarted       = "Réponds d'abord à l'Appel."
	MsgAwaitingReview   = "Ta preuve attend le jugement des Gardiens."
	MsgNeedsPhoto       = "Cette quête exige une photographie."
	MsgNoPhotoRule      = "Cette quête ne se prouve pas par l'image."
	MsgEmptyImage       = "Aucune image reçue."
	MsgWrongAnswer      = "Ce n'est pas la bonne réponse."
	MsgVeil             = "Le voile d'Isis est trop épais."
	MsgUndecided        = "L'Oracle est indécis."
	MsgUnionDone        = "L'Union Sacrée est accomplie."
	MsgUnionIncomplete  = "Les reliques ne chantent pas encore en chœur."
	MsgReviewRequested  = "Ta preuve a été confiée aux Gardiens."
	MsgReviewNotAllowed = "Seules les quêtes photographiques peuvent être soumises aux Gardiens."
	MsgNoProof          = "Envoie d'abord une photographie."
)
