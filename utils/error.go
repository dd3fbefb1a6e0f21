package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

func ErrorDuplicateValue(field string) error {
	return errors.New(field + " already exists")
}

