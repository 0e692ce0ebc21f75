package ssr

// Head is the head-tag metadata collected while rendering.
type Head struct {
	Title string
	Meta  []MetaTag
	Links []LinkTag
}

// MetaTag represents a meta element in the document head.
type MetaTag struct {
	Name      string // name attribute
	Content   string // content attribute
	Property  string // property attribute (for OpenGraph)
	HTTPEquiv string // http-equiv attribute
	Charset   string // charset attribute
}

// LinkTag represents a link element in the document head.
type LinkTag struct {
	Rel         string // rel attribute
	Href        string // href attribute
	Type        string // type attribute
	Sizes       string // sizes attribute
	CrossOrigin string // crossorigin attribute
	Media       string // media attribute
}

// Merge returns h with other's tags appended. other's title wins when set.
func (h Head) Merge(other Head) Head {
	out := h.clone()
	if other.Title != "" {
		out.Title = other.Title
	}
	out.Meta = append(out.Meta, other.Meta...)
	out.Links = append(out.Links, other.Links...)
	return out
}

func (h Head) clone() Head {
	return Head{
		Title: h.Title,
		Meta:  append([]MetaTag(nil), h.Meta...),
		Links: append([]LinkTag(nil), h.Links...),
	}
}
