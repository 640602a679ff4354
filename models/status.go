package models

import "fmt"

// Допустимые переходы статусов тендера.
// assigned необязателен: active может сразу перейти в submitted.
var transitions = map[TenderStatus][]TenderStatus{
	StatusDraft:             {StatusActive, StatusMissedOpportunity, StatusNotRelevant},
	StatusActive:            {StatusAssigned, StatusSubmitted, StatusMissedOpportunity, StatusNotRelevant},
	StatusAssigned:          {StatusSubmitted},
	StatusSubmitted:         {StatusWon, StatusLost},
	StatusMissedOpportunity: {StatusActive},
}

// CanTransition проверяет переход from -> to по машине состояний.
func CanTransition(from, to TenderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition возвращает ошибку для недопустимого перехода.
func ValidateTransition(from, to TenderStatus) error {
	if !IsValidStatus(to) {
		return fmt.Errorf("unknown status %q", to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}
	return nil
}

// IsValidStatus сообщает, известен ли статус.
func IsValidStatus(s TenderStatus) bool {
	switch s {
	case StatusDraft, StatusActive, StatusAssigned, StatusSubmitted,
		StatusWon, StatusLost, StatusMissedOpportunity, StatusNotRelevant:
		return true
	}
	return false
}
