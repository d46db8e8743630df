// Package parser разбирает строку быстрой покупки:
//
//	command := username (SP item)*
//	item    := product_id [":" quantity]
//
// Отсутствующее количество означает 1, явный 0 допустим и не даёт позиций.
package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// QuickBuyError ошибка разбора. ParsedPart — успешно разобранный префикс,
// FailedPart — битый токен и всё после него; по длине префикса вызывающая
// сторона рисует указатель на место ошибки.
type QuickBuyError struct {
	ParsedPart string
	FailedPart string
}

func (e *QuickBuyError) Error() string {
	return fmt.Sprintf("invalid quickbuy near %q", e.FailedPart)
}

// Parse возвращает имя участника и список id товаров, где каждый id
// повторён столько раз, сколько запрошено количеством.
func Parse(line string) (string, []int64, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil, &QuickBuyError{ParsedPart: "", FailedPart: line}
	}
	username := parts[0]
	var ids []int64
	for i, tok := range parts[1:] {
		id, count, ok := parseItem(tok)
		if !ok {
			return "", nil, &QuickBuyError{
				ParsedPart: strings.Join(parts[:i+1], " "),
				FailedPart: strings.Join(parts[i+1:], " "),
			}
		}
		for n := int64(0); n < count; n++ {
			ids = append(ids, id)
		}
	}
	return username, ids, nil
}

func parseItem(tok string) (id, count int64, ok bool) {
	idPart, countPart, hasCount := strings.Cut(tok, ":")
	count = 1
	if hasCount {
		c, err := strconv.ParseInt(countPart, 10, 64)
		if err != nil || c < 0 {
			return 0, 0, false
		}
		count = c
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id < 0 {
		return 0, 0, false
	}
	return id, count, true
}
