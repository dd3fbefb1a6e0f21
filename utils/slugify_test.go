package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "deri-ceket", Slugify("DERİ CEKET"))
	assert.Equal(t, "cicekli-elbise", Slugify("Çiçekli  Elbise"))
	assert.Equal(t, "item", Slugify("!!!"))
	assert.Equal(t, "item", Slugify(""))
}
