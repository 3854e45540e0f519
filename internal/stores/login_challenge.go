package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeRecordVersionV1 = 1
)

var (
	ErrChallengeNotFound         = errors.New("login challenge not found")
	ErrChallengeExpired          = errors.New("login challenge expired")
	ErrChallengeSecretMismatch   = errors.New("login challenge secret mismatch")
	ErrChallengeAttemptsExceeded = errors.New("login challenge attempts exceeded")
	ErrChallengeRedisUnavailable = errors.New("login challenge redis unavailable")
)

// consumeChallengeLua atomically performs GET→validate→DEL/SET on a login challenge.
// KEYS[1] = record key
// ARGV[1] = provided hash (32 bytes)
// ARGV[2] = max attempts (int string)
// ARGV[3] = current unix timestamp (int string)
//
// Returns:
//
//	record bytes on success
//	error string: "not_found", "expired", "attempts_exceeded", "secret_mismatch"
var consumeChallengeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local providedHash = ARGV[1]
local maxAttempts = tonumber(ARGV[2])
local nowUnix = tonumber(ARGV[3])

-- Layout: version(1) attempts(2 big-endian) expiresAt(8 big-endian) emailLen(2) email hash(32)
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local attempts = string.byte(data, 2) * 256 + string.byte(data, 3)

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 4, 11)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

local emailLen = string.byte(data, 12) * 256 + string.byte(data, 13)
local hashOffset = 14 + emailLen
local storedHash = string.sub(data, hashOffset, hashOffset + 31)

if storedHash ~= providedHash then
  attempts = attempts + 1
  if attempts >= maxAttempts then
    redis.call('DEL', KEYS[1])
    return {err='attempts_exceeded'}
  end
  local newData = string.sub(data, 1, 1) .. string.char(math.floor(attempts / 256), attempts % 256) .. string.sub(data, 4)
  local ttlMs = redis.call('PTTL', KEYS[1])
  if ttlMs <= 0 then
    redis.call('DEL', KEYS[1])
    return {err='expired'}
  end
  redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
  return {err='secret_mismatch'}
end

redis.call('DEL', KEYS[1])
return data
`)

// LoginChallengeRecord is the stored half of a login ticket. The code itself is never
// stored, only the digest binding it to the ticket and email.
type LoginChallengeRecord struct {
	Email      string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
}

// LoginChallengeStore keeps pending login challenges in Redis.
type LoginChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewLoginChallengeStore returns a store with keys under prefix.
func NewLoginChallengeStore(redisClient redis.UniversalClient, prefix string) *LoginChallengeStore {
	if prefix == "" {
		prefix = "rlc"
	}
	return &LoginChallengeStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *LoginChallengeStore) key(loginID string) string {
	return s.prefix + ":" + loginID
}

// Save writes record under loginID, expiring after ttl.
func (s *LoginChallengeStore) Save(ctx context.Context, loginID string, record *LoginChallengeRecord, ttl time.Duration) error {
	encoded, err := encodeLoginChallengeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(loginID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	return nil
}

// Consume checks providedHash against the stored record and deletes it on success.
// Mismatches count toward maxAttempts; reaching the cap deletes the record.
func (s *LoginChallengeStore) Consume(ctx context.Context, loginID string, providedHash [32]byte, maxAttempts int) (*LoginChallengeRecord, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	result, err := consumeChallengeLua.Run(ctx, s.redis,
		[]string{s.key(loginID)},
		string(providedHash[:]),
		maxAttempts,
		s.now().Unix(),
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrChallengeNotFound
		case "expired":
			return nil, ErrChallengeExpired
		case "attempts_exceeded":
			return nil, ErrChallengeAttemptsExceeded
		case "secret_mismatch":
			return nil, ErrChallengeSecretMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrChallengeRedisUnavailable)
	}

	record, decErr := decodeLoginChallengeRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, decErr)
	}

	// Lua string comparison is not constant-time.
	if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
		return nil, ErrChallengeSecretMismatch
	}

	return record, nil
}

func encodeLoginChallengeRecord(record *LoginChallengeRecord) ([]byte, error) {
	if len(record.Email) > 65535 {
		return nil, errors.New("login challenge email too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeLoginChallengeRecord(data []byte) (*LoginChallengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersionV1 {
		return nil, errors.New("invalid login challenge record version")
	}

	record := &LoginChallengeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
