package security_test

import (
	"errors"
	"testing"
	"time"

	"auth-session-server/config"
	"auth-session-server/internal/model"
	"auth-session-server/internal/security"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func newTestJWTService() *security.JWTService {
	return security.NewJWTService(&config.JWTConfig{
		SecretKey:       testSecret,
		AccessTokenTTL:  "15m",
		RefreshTokenTTL: "168h",
	})
}

func testUser() *model.User {
	return &model.User{
		ID:           42,
		Email:        "user@example.com",
		FullName:     "Ivan Petrov",
		Active:       true,
		TokenVersion: 3,
	}
}

// 1. Выданный токен раскодируется обратно со всеми claims
func TestIssueAccessToken_RoundTrip(t *testing.T) {
	svc := newTestJWTService()

	token, expiresAt, err := svc.IssueAccessToken(testUser(), []string{"admin", "editor"})
	require.NoError(t, err)

	claims, err := svc.ValidateJWT(token)
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "Ivan Petrov", claims.FullName)
	assert.Equal(t, []string{"admin", "editor"}, claims.Roles)
	assert.Equal(t, int64(3), claims.EffectiveTokenVersion())
	assert.NotEmpty(t, claims.ID, "jti должен быть заполнен")
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)
}

// 2. У двух токенов разные jti
func TestIssueAccessToken_UniqueJTI(t *testing.T) {
	svc := newTestJWTService()

	first, _, err := svc.IssueAccessToken(testUser(), nil)
	require.NoError(t, err)
	second, _, err := svc.IssueAccessToken(testUser(), nil)
	require.NoError(t, err)

	firstClaims, err := svc.ValidateJWT(first)
	require.NoError(t, err)
	secondClaims, err := svc.ValidateJWT(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

// 3. Токен с чужим ключом не проходит
func TestValidateJWT_WrongKey(t *testing.T) {
	other := security.NewJWTService(&config.JWTConfig{SecretKey: "другой ключ"})
	token, _, err := other.IssueAccessToken(testUser(), nil)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateJWT(token)
	assert.Error(t, err)
}

// 4. Подмена алгоритма отклоняется, даже если ключ тот же
func TestValidateJWT_AlgorithmConfusion(t *testing.T) {
	claims := security.Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateJWT(token)
	assert.Error(t, err)
}

// 5. Просроченный токен различим через errors.Is
func TestValidateJWT_Expired(t *testing.T) {
	claims := security.Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-16 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateJWT(token)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

// 6. Мусор вместо токена
func TestValidateJWT_Malformed(t *testing.T) {
	_, err := newTestJWTService().ValidateJWT("это не jwt")
	assert.Error(t, err)
}

// 7. Токен без клеймы версии трактуется как версия 0
func TestClaims_LegacyTokenWithoutVersion(t *testing.T) {
	claims := security.Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	parsed, err := newTestJWTService().ValidateJWT(token)
	require.NoError(t, err)

	assert.Nil(t, parsed.TokenVersion)
	assert.Equal(t, int64(0), parsed.EffectiveTokenVersion())
}

// 8. Refresh-токен: 64 байта энтропии, токены не повторяются
func TestGenerateRefreshToken(t *testing.T) {
	first, err := security.GenerateRefreshToken()
	require.NoError(t, err)
	second, err := security.GenerateRefreshToken()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(first), 86, "64 байта в base64 это не меньше 86 символов")
	assert.NotEqual(t, first, second)
}

// 9. TTL берутся из конфигурации, при пустой - значения по умолчанию
func TestTTLAccessors(t *testing.T) {
	svc := newTestJWTService()
	assert.Equal(t, 15*time.Minute, svc.AccessTTL())
	assert.Equal(t, 168*time.Hour, svc.RefreshTTL())

	empty := security.NewJWTService(&config.JWTConfig{SecretKey: testSecret})
	assert.Equal(t, 15*time.Minute, empty.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, empty.RefreshTTL())
}

// signLegacyToken подписывает токен без клеймы версии, как выдавали
// до появления версионирования
func signLegacyToken(t *testing.T, userID int64) string {
	t.Helper()

	claims := security.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func signExpiredToken(t *testing.T, userID int64) string {
	t.Helper()

	version := int64(3)
	claims := security.Claims{
		UserID:       userID,
		TokenVersion: &version,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-16 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}
