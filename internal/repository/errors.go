package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	//条件付き更新で対象行が動いていた（他の更新が先に入った）
	ErrConflict = errors.New("conflict")
	//注文番号のユニーク制約違反。採番し直す
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrDuplicateEmail       = errors.New("duplicate email")
)
