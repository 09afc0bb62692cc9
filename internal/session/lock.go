package session

import "sync"

// KeyedMutex сериализует операции одного пользователя. Операции разных
// пользователей не блокируют друг друга.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyedLock)}
}

// Lock захватывает блокировку пользователя и возвращает функцию освобождения
func (k *KeyedMutex) Lock(userID int64) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[userID]
	if !ok {
		l = &keyedLock{}
		k.locks[userID] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, userID)
		}
		k.mu.Unlock()
	}
}

// size - число пользователей с захваченной или ожидаемой блокировкой
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
