package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolationCode はPostgreSQLの一意制約違反のSQLSTATEコード。
const uniqueViolationCode = "23505"

// isUniqueViolation はエラーが一意制約違反かを判定する。
// 同時作成の競合はDBの一意制約で決定的な「既に存在する」結果に収束するため、
// リポジトリ境界でmodel.APIError(CONFLICT)への変換に使用する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
