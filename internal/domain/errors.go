package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been started or was abandoned.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionFinished is returned for transitions attempted after the last question.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrNotSessionOwner is returned when a user acts on someone else's session.
	ErrNotSessionOwner = errors.New("session belongs to another user")
	// ErrEmptyQuestionPool means no question matched the requested filters.
	ErrEmptyQuestionPool = errors.New("no questions match the selected filters")
	// ErrInvalidQuestion wraps the structural problems of a question.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrQuestionNotFound indicates a question ID is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoChoiceSelected rejects a submission without a selected choice.
	ErrNoChoiceSelected = errors.New("no choice selected")
	// ErrConfidenceRequired rejects a submission missing the confidence rating.
	ErrConfidenceRequired = errors.New("confidence level required")
	// ErrInvalidChoice indicates a choice index outside 0..3.
	ErrInvalidChoice = errors.New("choice index out of range")
	// ErrInvalidConfidence indicates an unknown confidence level.
	ErrInvalidConfidence = errors.New("unknown confidence level")
	// ErrInvalidDifficulty indicates an unknown difficulty name.
	ErrInvalidDifficulty = errors.New("unknown difficulty")
	// ErrInvalidGrade indicates a grade that cannot be normalised.
	ErrInvalidGrade = errors.New("unrecognised grade")
	// ErrAlreadyAnswered is returned when the current question already has a recorded answer.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrSessionInProgress is returned when asking for the result of an unfinished session.
	ErrSessionInProgress = errors.New("quiz session still in progress")
	// ErrAnswerNotFound indicates an answer record ID is unknown.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrInsufficientBalance means the point balance does not cover the cost.
	ErrInsufficientBalance = errors.New("insufficient point balance")
	// ErrInvalidAmount rejects non-positive point amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrRewardNotFound indicates a reward ID is unknown.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrInvalidReward rejects a reward without a name or with a non-positive cost.
	ErrInvalidReward = errors.New("invalid reward")
	// ErrRewardExpired is returned when claiming a reward past its expiry.
	ErrRewardExpired = errors.New("reward expired")
	// ErrForbidden is returned when the caller may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when no signed-in identity is present.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrProfileNotFound indicates no profile exists for the user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidTheme indicates an unknown theme preference.
	ErrInvalidTheme = errors.New("unknown theme")
)
