package keycloak

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/deolexx/smart-home-secure/internal/logs"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier проверяет bearer-токены против открытого ключа realm'а.
// Ключ забирается с дескриптора realm'а (GET /realms/{realm}) лениво
// и кэшируется; при ошибке подписи перечитывается один раз — на случай
// ротации ключей.
type Verifier struct {
	serverURL string
	realm     string
	httpc     *http.Client

	mu  sync.Mutex
	key *rsa.PublicKey
}

func NewVerifier(serverURL, realm string) *Verifier {
	return &Verifier{
		serverURL: serverURL,
		realm:     realm,
		httpc:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Issuer — ожидаемое значение iss в токенах realm'а.
func (v *Verifier) Issuer() string {
	return fmt.Sprintf("%s/realms/%s", v.serverURL, v.realm)
}

// Verify разбирает и проверяет токен: подпись RS256, издатель, срок действия.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims, err := v.parse(tokenString)
	if err == nil {
		return claims, nil
	}
	// возможно, realm перевыпустил ключи — перечитаем и попробуем ещё раз
	if v.invalidateKey() {
		return v.parse(tokenString)
	}
	return nil, err
}

func (v *Verifier) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.VerifyIssuer(v.Issuer(), true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	return claims, nil
}

// invalidateKey сбрасывает кэш ключа. false — кэш и так был пуст,
// повторять разбор бессмысленно.
func (v *Verifier) invalidateKey() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key == nil {
		return false
	}
	v.key = nil
	return true
}

func (v *Verifier) publicKey() (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key != nil {
		return v.key, nil
	}

	url := fmt.Sprintf("%s/realms/%s", v.serverURL, v.realm)
	resp, err := v.httpc.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch realm descriptor: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch realm descriptor: unexpected status %d", resp.StatusCode)
	}

	var descriptor struct {
		Realm     string `json:"realm"`
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&descriptor); err != nil {
		return nil, fmt.Errorf("decode realm descriptor: %w", err)
	}
	if descriptor.PublicKey == "" {
		return nil, errors.New("realm descriptor has no public_key")
	}

	der, err := base64.StdEncoding.DecodeString(descriptor.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode realm public key: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse realm public key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("realm public key is %T, want *rsa.PublicKey", parsed)
	}

	v.key = rsaKey
	logs.With("keycloak").Infof("realm %s public key loaded", v.realm)
	return v.key, nil
}
