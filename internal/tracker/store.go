package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL de segurança: partida abandonada sem status final não fica pra sempre
const stateTTL = 48 * time.Hour

// RedisStore persiste um documento JSON por partida rastreada. Escritas são
// sempre do documento inteiro; com um único processo escritor isso equivale
// ao merge atômico do modelo original
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(c *redis.Client) *RedisStore { return &RedisStore{Client: c} }

func stateKey(fixtureID int) string { return "match:state:" + strconv.Itoa(fixtureID) }

// Get retorna o estado da partida, nil quando não rastreada
func (s *RedisStore) Get(ctx context.Context, fixtureID int) (*MatchState, error) {
	b, err := s.Client.Get(ctx, stateKey(fixtureID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st MatchState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode match state %d: %w", fixtureID, err)
	}
	if err := validate(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Put grava o documento inteiro numa escrita atômica
func (s *RedisStore) Put(ctx context.Context, st *MatchState) error {
	if err := validate(st); err != nil {
		return err
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, stateKey(st.FixtureID), b, stateTTL).Err()
}

// Delete remove o rastreio; o histórico de apostas resolvidas não é afetado
func (s *RedisStore) Delete(ctx context.Context, fixtureID int) error {
	return s.Client.Del(ctx, stateKey(fixtureID)).Err()
}
