package service

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
)

const lockShards = 64

// userLocks сериализует изменения портфеля одного пользователя внутри процесса.
// Пользователи распределены по шардам через FNV-1a; соседи по шарду просто ждут друг друга.
// Между процессами порядок держит FOR UPDATE NOWAIT в хранилище.
type userLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *userLocks) shardOf(userID int64) *sync.Mutex {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(userID))
	h := fnv.New32a()
	_, _ = h.Write(key[:])
	return &l.shards[h.Sum32()%lockShards]
}

// Lock берёт блокировку пользователя и возвращает функцию для её снятия.
func (l *userLocks) Lock(userID int64) func() {
	mu := l.shardOf(userID)
	mu.Lock()
	return mu.Unlock
}
