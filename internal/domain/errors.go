package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized возвращается при ошибке авторизации
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoPrice возвращается когда референсную цену вычислить нельзя.
	// Отличается от нулевой цены: цикл обязан отменить все ордера и выйти.
	ErrNoPrice = errors.New("no price available")

	// ErrVenueTransient возвращается при временной ошибке биржи (rate limit, nonce)
	ErrVenueTransient = errors.New("transient venue error")

	// ErrVenuePermanent возвращается при постоянной ошибке биржи
	ErrVenuePermanent = errors.New("permanent venue error")

	// ErrUnknownVenue возвращается когда для биржи нет реализации gateway
	ErrUnknownVenue = errors.New("unknown venue")
)
