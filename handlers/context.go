package handlers

// contextKey, context.WithValue için özel tip.
// String yerine özel tip kullanmak key çakışmalarını önler (Go idiomu).
type contextKey string

// UserContextKey, auth middleware'ın doğrulanmış kullanıcıyı request
// context'ine koyarken kullandığı key.
const UserContextKey contextKey = "user"
