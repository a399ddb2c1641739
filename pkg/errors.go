// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Error'lar sentinel değer olarak tanımlanır ve her katmanda
// fmt.Errorf("%w: detay", pkg.ErrX) ile zenginleştirilir.
// Karşılaştırma errors.Is() ile yapılır — string karşılaştırması yok.
package pkg

import "errors"

// Genel domain error'ları.
// Handler katmanı bunları HTTP status code'larına, WS gateway ise
// ack code'larına map'ler.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")
)

// Signaling'e özgü error'lar.
//
// Bunlar protokol durumlarıdır, sistem hatası değil:
//   - ErrGlareConflict: A, B'ye offer atmaya çalışıyor ama B→A offer'ı zaten
//     var. Client'ın yeni offer yaratmak yerine mevcut offer'ı CEVAPLAMASI
//     gerekir ("glare" önleme).
//   - ErrOfferNotFound: answer'ın karşılık geldiği ters yönlü offer yok.
//   - ErrNoMatchingOffer: ICE candidate'ın ekleneceği link henüz kurulmamış.
//     Client offer geldikten sonra candidate'ı yeniden gönderebilir —
//     retriable bir durum, bu yüzden ayrı bir code ile surface edilir.
var (
	ErrGlareConflict   = errors.New("glare conflict")
	ErrOfferNotFound   = errors.New("offer not found")
	ErrNoMatchingOffer = errors.New("no matching offer")
)

// Code, bir error'ı WS ack/error event'lerinde taşınan makine-okunur
// classification string'ine çevirir. Client retry kararını bu code ile verir.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrGlareConflict):
		return "glare_conflict"
	case errors.Is(err, ErrOfferNotFound):
		return "offer_not_found"
	case errors.Is(err, ErrNoMatchingOffer):
		return "no_matching_offer"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBadRequest):
		return "validation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
