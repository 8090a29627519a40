// Package common — errors.go определяет ошибки, которые используются
// во всех модулях движка. Эти ошибки позволяют API различать
// ошибки валидации, отсутствующие данные и отказы политики.
package common

import "errors"

// Ошибки валидации входных данных
var (
	// ErrEmptyUserID — не передан идентификатор пользователя
	ErrEmptyUserID = errors.New("не указан идентификатор пользователя")
	// ErrUnknownActionKind — тип действия не из закрытого списка vote|comment|join
	ErrUnknownActionKind = errors.New("неизвестный тип действия")
	// ErrUnknownOutcome — исход действия не из списка pending|completed|failed
	ErrUnknownOutcome = errors.New("неизвестный исход действия")
	// ErrEmptyKeywords — у алерта нет ключевых слов
	ErrEmptyKeywords = errors.New("список ключевых слов пуст")
	// ErrEmptyCommunities — у алерта нет сообществ
	ErrEmptyCommunities = errors.New("список сообществ пуст")
	// ErrEmptyAlertName — у алерта нет названия
	ErrEmptyAlertName = errors.New("не указано название алерта")
	// ErrInvalidDuration — длительность паузы должна быть положительной
	ErrInvalidDuration = errors.New("длительность должна быть положительной")
	// ErrCompositeAction — рекомендация both описывает два действия, проверять нужно каждое отдельно
	ErrCompositeAction = errors.New("both — это два действия: проверьте comment и vote по отдельности")
	// ErrInvalidAccount — снимок аккаунта без имени, с датой создания в будущем или отрицательной кармой
	ErrInvalidAccount = errors.New("некорректные данные аккаунта")
	// ErrInvalidPoints — начислять можно только положительные очки
	ErrInvalidPoints = errors.New("количество очков должно быть положительным")
)

// Ошибки данных
var (
	// ErrAccountNotFound — у пользователя нет привязанного аккаунта платформы
	ErrAccountNotFound = errors.New("аккаунт пользователя не найден")
	// ErrTrustStateNotFound — запись уровня доверия ещё не создана
	ErrTrustStateNotFound = errors.New("уровень доверия не найден")
	// ErrActionNotFound — запись действия не найдена
	ErrActionNotFound = errors.New("действие не найдено")
	// ErrOpportunityNotFound — возможность не найдена
	ErrOpportunityNotFound = errors.New("возможность не найдена")
	// ErrInvalidOutcomeTransition — исход можно менять только из pending
	ErrInvalidOutcomeTransition = errors.New("исход можно изменить только у действия в статусе pending")
)

// Ошибки конфигурации и доступа
var (
	// ErrInvalidTierLadder — лестница уровней нарушает монотонность
	ErrInvalidTierLadder = errors.New("некорректная лестница уровней доверия")
	// ErrFeatureLocked — функция недоступна на текущем уровне доверия
	ErrFeatureLocked = errors.New("функция недоступна на вашем уровне доверия")
)
