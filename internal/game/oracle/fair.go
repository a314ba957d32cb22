package oracle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// PendingPolicy decide o que fazer quando o oráculo não cumpre dentro do polling
type PendingPolicy string

const (
	// PolicyWait mantém a requisição e volta a consultar no próximo tick
	PolicyWait PendingPolicy = "wait"
	// PolicyFail abandona a requisição e anula a série, devolvendo as apostas
	PolicyFail PendingPolicy = "fail"
	// PolicySubstitute usa um valor derivado da requisição. Precisa ser habilitado explicitamente.
	PolicySubstitute PendingPolicy = "substitute"
)

func ParsePendingPolicy(s string) (PendingPolicy, error) {
	switch p := PendingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyWait, nil
	case PolicyWait, PolicyFail, PolicySubstitute:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// FairDice deriva um par de dados de forma determinística a partir de seed e nonce,
// usando HMAC-SHA256(seed, "nonce:round") e rejection sampling por byte.
func FairDice(seed, nonce string) Dice {
	var dice [2]int
	n := 0
	for round := 0; n < 2; round++ {
		h := hmac.New(sha256.New, []byte(seed))
		fmt.Fprintf(h, "%s:%d", nonce, round)
		for _, b := range h.Sum(nil) {
			// 252 = 6*42, descarta o resto para não enviesar
			if b >= 252 {
				continue
			}
			dice[n] = int(b%6) + 1
			n++
			if n == 2 {
				break
			}
		}
	}
	return Dice{Die1: dice[0], Die2: dice[1]}
}

// FairProof é o HMAC da primeira rodada, publicado junto do resultado para auditoria
func FairProof(seed, nonce string) string {
	h := hmac.New(sha256.New, []byte(seed))
	fmt.Fprintf(h, "%s:%d", nonce, 0)
	return hex.EncodeToString(h.Sum(nil))
}
