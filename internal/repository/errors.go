package repository

import "errors"

// ErrNotFound はドキュメント・明細行が存在しない場合に返される
var ErrNotFound = errors.New("not found")

// ErrNotEditable はドキュメントが編集可能なステータスを外れているため書き込みを拒否した場合に返される
var ErrNotEditable = errors.New("document is not editable")
